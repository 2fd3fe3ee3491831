package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Kind string

const (
	KindApp    Kind = "app"
	KindSystem Kind = "system"
	KindUser   Kind = "user"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindApp, KindSystem, KindUser:
		return Kind(raw), nil
	default:
		return "", fmt.Errorf("unknown consumer kind: %q", raw)
	}
}

const (
	// UIDOtherUsers is the synthetic user entry that absorbs every user other
	// than the current one and its work profile.
	UIDOtherUsers  int64 = math.MinInt32
	UIDRemovedApps int64 = -4
	UIDTethering   int64 = -5

	FakePackageName = "fake_package"

	perUserRange     = 100000
	firstSystemAppID = 1000
	lastSystemAppID  = 9999
)

// ConsumerRef identifies one power consumer across snapshots. Implementations
// are App, SystemComponent and User; the set is closed.
type ConsumerRef interface {
	Kind() Kind
	Key() string
	sealed()
}

type App struct {
	UID         int64  `json:"uid"`
	UserID      int64  `json:"user_id"`
	PackageName string `json:"package_name"`
}

func (App) Kind() Kind { return KindApp }
func (a App) Key() string { return strconv.FormatInt(a.UID, 10) }
func (App) sealed() {}
func (a App) AppID() int64 { return a.UID % perUserRange }
func (a App) IsFake() bool { return a.PackageName == "" || a.PackageName == FakePackageName }
// BasePackage strips a ":process" suffix from the package name.
func (a App) BasePackage() string {
	return BasePackage(a.PackageName)
}

func BasePackage(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}

func (a App) IsSystemUID() bool {
	id := a.AppID()
	return id >= firstSystemAppID && id <= lastSystemAppID
}

type SystemComponent struct {
	DrainType int `json:"drain_type"`
}

func (SystemComponent) Kind() Kind { return KindSystem }
func (s SystemComponent) Key() string { return "S|" + strconv.Itoa(s.DrainType) }
func (SystemComponent) sealed() {}

func (s SystemComponent) Name() string {
	if name, ok := componentNames[s.DrainType]; ok {
		return name
	}
	return "component-" + strconv.Itoa(s.DrainType)
}

type User struct {
	UserID int64 `json:"user_id"`
}

func (User) Kind() Kind { return KindUser }
func (u User) Key() string { return "U|" + strconv.FormatInt(u.UserID, 10) }
func (User) sealed() {}

const (
	DrainScreen         = 0
	DrainCPU            = 1
	DrainBluetooth      = 2
	DrainCamera         = 3
	DrainAudio          = 4
	DrainVideo          = 5
	DrainFlashlight     = 6
	DrainSystemServices = 7
	DrainMobileRadio    = 8
	DrainSensors        = 9
	DrainGNSS           = 10
	DrainWiFi           = 11
	DrainWakelock       = 12
	DrainMemory         = 13
	DrainPhone          = 14
	DrainAmbientDisplay = 15
	DrainIdle           = 16
	DrainReattributed   = 17
)

var componentNames = map[int]string{
	DrainScreen:         "screen",
	DrainCPU:            "cpu",
	DrainBluetooth:      "bluetooth",
	DrainCamera:         "camera",
	DrainAudio:          "audio",
	DrainVideo:          "video",
	DrainFlashlight:     "flashlight",
	DrainSystemServices: "system_services",
	DrainMobileRadio:    "mobile_radio",
	DrainSensors:        "sensors",
	DrainGNSS:           "gnss",
	DrainWiFi:           "wifi",
	DrainWakelock:       "wakelock",
	DrainMemory:         "memory",
	DrainPhone:          "phone",
	DrainAmbientDisplay: "ambient_display",
	DrainIdle:           "idle",
	DrainReattributed:   "reattributed",
}

// ConsumerUserID reports the owning user of a consumer; system components
// belong to no user.
func ConsumerUserID(ref ConsumerRef) (int64, bool) {
	switch c := ref.(type) {
	case App:
		return c.UserID, true
	case User:
		return c.UserID, true
	case SystemComponent:
		return 0, false
	default:
		panic(fmt.Sprintf("unhandled consumer type %T", ref))
	}
}
