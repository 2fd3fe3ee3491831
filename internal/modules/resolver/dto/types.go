package dto

type LookupInput struct {
	Packages []string
	Locale   string
}

type PackageOutput struct {
	PackageName string
	Label       string
	Installed   bool
	Resolved    bool
	Cached      bool
}

// LookupOutput is Degraded when the backend failed and unresolved entries
// reflect that failure rather than an unknown package.
type LookupOutput struct {
	Packages []PackageOutput
	Degraded bool
}

type DoctorResult struct {
	Backend         string
	Version         string
	Packages        int
	BinaryReachable bool
	ChecksumValid   bool
	LifecycleOK     bool
	CachedEntries   int
	Error           string
}
