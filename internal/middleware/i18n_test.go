package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectLocaleHeaderPriority(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Locale", "id-ID")
	r.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")

	if got := detectLocale(r, "en", ""); got != "id" {
		t.Fatalf("got %q, want %q", got, "id")
	}
}

func TestDetectLocaleAcceptLanguage(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	if got := detectLocale(r, "en", ""); got != "pt" {
		t.Fatalf("got %q, want %q", got, "pt")
	}
}

func TestDetectLocaleCountryFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	if got := detectLocale(r, "en", "MX"); got != "es" {
		t.Fatalf("got %q, want %q", got, "es")
	}
	if got := detectLocale(r, "en", "US"); got != "en" {
		t.Fatalf("got %q, want %q", got, "en")
	}
}

func TestNormalizeLocaleUnsupported(t *testing.T) {
	if got := normalizeLocale("zz-ZZ"); got != "en" {
		t.Fatalf("got %q, want %q", got, "en")
	}
	if got := normalizeLocale("DE_at"); got != "de" {
		t.Fatalf("got %q, want %q", got, "de")
	}
}

func TestResolveCountryHeaderHint(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("CF-IPCountry", "br")

	if got := ResolveCountry(r, nil); got != "BR" {
		t.Fatalf("got %q, want %q", got, "BR")
	}
}

func TestResolveCountryLookupFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:1234"

	lookup := func(ip string) (string, error) {
		if ip != "203.0.113.7" {
			t.Fatalf("lookup got %q, want %q", ip, "203.0.113.7")
		}
		return "fr", nil
	}
	if got := ResolveCountry(r, lookup); got != "FR" {
		t.Fatalf("got %q, want %q", got, "FR")
	}
}

func TestI18NStoresLocaleOnContext(t *testing.T) {
	var gotLocale, gotCountry string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLocale = LocaleFromContext(r.Context())
		gotCountry = CountryFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Country-Code", "ID")
	I18N("en", nil)(next).ServeHTTP(httptest.NewRecorder(), r)

	if gotLocale != "id" {
		t.Fatalf("got locale %q, want %q", gotLocale, "id")
	}
	if gotCountry != "ID" {
		t.Fatalf("got country %q, want %q", gotCountry, "ID")
	}
}
