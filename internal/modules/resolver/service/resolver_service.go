package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"batteryusage/internal/modules/resolver/domain"
	"batteryusage/internal/modules/resolver/dto"
	resolverout "batteryusage/internal/modules/resolver/port/out"
	"batteryusage/internal/platform/metrics"

	"go.uber.org/zap"
)

type ResolverService struct {
	backend  resolverout.Backend
	cache    *Cache
	manifest *domain.Manifest
	metrics  *metrics.Metrics
	logger   *zap.Logger

	verifyOnce sync.Once
	verifyErr  error
}

// NewResolverService wires a backend behind the cache. manifest is set only
// for plugin backends and enables binary checks in Doctor.
func NewResolverService(backend resolverout.Backend, cache *Cache, manifest *domain.Manifest, m *metrics.Metrics, logger *zap.Logger) *ResolverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolverService{backend: backend, cache: cache, manifest: manifest, metrics: m, logger: logger}
}

func (s *ResolverService) Lookup(ctx context.Context, input dto.LookupInput) (dto.LookupOutput, error) {
	if locale := strings.TrimSpace(input.Locale); locale != "" {
		s.cache.SetLocale(locale)
	}
	names := domain.NormalizePackages(input.Packages)
	results := make(map[string]dto.PackageOutput, len(names))
	misses := make([]string, 0, len(names))
	for _, name := range names {
		info, resolved, ok := s.cache.Get(name)
		if !ok {
			misses = append(misses, name)
			continue
		}
		s.metrics.ResolverLookup("hit")
		results[name] = packageOutput(name, info, resolved, true)
	}

	out := dto.LookupOutput{}
	if len(misses) > 0 {
		found, err := s.resolve(ctx, misses)
		if err != nil {
			if ctx.Err() != nil {
				return dto.LookupOutput{}, ctx.Err()
			}
			s.logger.Warn("package lookup failed", zap.Int("packages", len(misses)), zap.Error(err))
			s.metrics.ResolverLookup("error")
			out.Degraded = true
			for _, name := range misses {
				results[name] = packageOutput(name, domain.PackageInfo{}, false, false)
			}
		} else {
			for _, name := range misses {
				info, resolved := found[name]
				if resolved {
					s.metrics.ResolverLookup("miss")
				} else {
					s.metrics.ResolverLookup("unresolved")
					s.logger.Debug("package not resolvable", zap.String("package", name))
				}
				s.cache.Put(name, info, resolved)
				results[name] = packageOutput(name, info, resolved, false)
			}
		}
	}

	out.Packages = make([]dto.PackageOutput, 0, len(names))
	for _, name := range names {
		out.Packages = append(out.Packages, results[name])
	}
	return out, nil
}

// resolve refuses to launch a pinned plugin binary whose checksum differs.
func (s *ResolverService) resolve(ctx context.Context, names []string) (map[string]domain.PackageInfo, error) {
	if s.manifest != nil && s.manifest.SHA256 != "" {
		s.verifyOnce.Do(func() {
			s.verifyErr = checksumMatches(s.manifest.Binary, s.manifest.SHA256)
		})
		if s.verifyErr != nil {
			return nil, s.verifyErr
		}
	}
	return s.backend.Resolve(ctx, names, s.cache.Locale())
}

func (s *ResolverService) Doctor(ctx context.Context) (dto.DoctorResult, error) {
	result := dto.DoctorResult{CachedEntries: s.cache.Len(), BinaryReachable: true, ChecksumValid: true}
	if s.manifest != nil {
		if err := s.manifest.Validate(); err != nil {
			result.Error = err.Error()
			return result, nil
		}
		result.BinaryReachable = fileExists(s.manifest.Binary)
		if !result.BinaryReachable {
			result.ChecksumValid = false
			result.Error = fmt.Sprintf("binary does not exist: %s", s.manifest.Binary)
			return result, nil
		}
		if s.manifest.SHA256 != "" {
			if err := checksumMatches(s.manifest.Binary, s.manifest.SHA256); err != nil {
				result.ChecksumValid = false
				result.Error = err.Error()
				return result, nil
			}
		}
	}
	info, err := s.backend.Describe(ctx)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.LifecycleOK = true
	result.Backend = info.Name
	result.Version = info.Version
	result.Packages = info.Packages
	return result, nil
}

func (s *ResolverService) Clear(_ context.Context) error {
	s.cache.Clear()
	return nil
}

func packageOutput(name string, info domain.PackageInfo, resolved, cached bool) dto.PackageOutput {
	return dto.PackageOutput{
		PackageName: name,
		Label:       info.Label,
		Installed:   resolved && info.Installed,
		Resolved:    resolved,
		Cached:      cached,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func checksumMatches(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open resolver binary: %w", err)
	}
	defer f.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return fmt.Errorf("hash resolver binary: %w", err)
	}
	if hex.EncodeToString(hash.Sum(nil)) != expected {
		return domain.ErrChecksumMismatch
	}
	return nil
}
