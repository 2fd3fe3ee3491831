package domain_test

import (
	"reflect"
	"testing"

	"batteryusage/internal/modules/resolver/domain"
)

func TestNormalizePackages(t *testing.T) {
	t.Parallel()
	got := domain.NormalizePackages([]string{"com.b:remote", " com.a ", "com.b", "", "fake_package"})
	want := []string{"com.a", "com.b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLocalizedLabelFallbacks(t *testing.T) {
	t.Parallel()
	labels := map[string]string{"de": "Post", "fr-FR": "Courrier"}
	cases := map[string]string{
		"fr-FR": "Courrier",
		"de-AT": "Post",
		"en-US": "Mail",
		"":      "Mail",
	}
	for locale, want := range cases {
		if got := domain.LocalizedLabel("Mail", labels, locale); got != want {
			t.Fatalf("locale %q: expected %q, got %q", locale, want, got)
		}
	}
}

func TestManifestValidate(t *testing.T) {
	t.Parallel()
	if err := (domain.Manifest{}).Validate(); err == nil {
		t.Fatalf("expected missing binary to fail")
	}
	if err := (domain.Manifest{Binary: "/bin/resolver", SHA256: "ABC"}).Validate(); err == nil {
		t.Fatalf("expected malformed checksum to fail")
	}
	if err := (domain.Manifest{Binary: "/bin/resolver"}).Validate(); err != nil {
		t.Fatalf("expected unpinned manifest to pass: %v", err)
	}
}
