package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func newCatalogRouter() *gin.Engine {
	handler := NewCatalogHandler()
	router := gin.New()
	router.GET("/document-types", handler.DocumentTypes)
	router.GET("/jurisdictions", handler.Jurisdictions)
	router.GET("/jurisdictions/:country/subdivisions", handler.Subdivisions)
	router.POST("/jurisdictions/resolve", handler.Resolve)
	return router
}

func TestCatalogDocumentTypes(t *testing.T) {
	w := doJSON(newCatalogRouter(), "GET", "/document-types", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	types := decodeBody(t, w)["document_types"].([]any)
	if len(types) != 6 {
		t.Fatalf("Expected 6 document types, got %d", len(types))
	}
	first := types[0].(map[string]any)
	if first["key"] != "non-disclosure" || first["label"] != "Non-Disclosure Agreement" {
		t.Errorf("Unexpected first document type %v", first)
	}
}

func TestCatalogJurisdictions(t *testing.T) {
	w := doJSON(newCatalogRouter(), "GET", "/jurisdictions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	countries := decodeBody(t, w)["countries"].([]any)
	byCode := make(map[string]map[string]any)
	for _, c := range countries {
		country := c.(map[string]any)
		byCode[country["code"].(string)] = country
	}

	if us := byCode["us"]; us == nil || us["has_subdivisions"] != true || len(us["subdivisions"].([]any)) != 51 {
		t.Errorf("Expected us with 51 subdivisions, got %v", us)
	}
	if de := byCode["de"]; de == nil || de["has_subdivisions"] != false || len(de["subdivisions"].([]any)) != 0 {
		t.Errorf("Expected de without subdivisions, got %v", de)
	}
}

func TestCatalogSubdivisions(t *testing.T) {
	router := newCatalogRouter()

	w := doJSON(router, "GET", "/jurisdictions/uk/subdivisions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := len(decodeBody(t, w)["subdivisions"].([]any)); got != 4 {
		t.Errorf("Expected 4 uk subdivisions, got %d", got)
	}

	assertEnvelope(t, doJSON(router, "GET", "/jurisdictions/xx/subdivisions", nil), http.StatusNotFound, "not_found")
}

func TestCatalogResolve(t *testing.T) {
	router := newCatalogRouter()

	tests := []struct {
		name     string
		body     map[string]string
		expected string
	}{
		{"country only", map[string]string{"country": "au"}, "Australia"},
		{"with subdivision", map[string]string{"country": "us", "subdivision": "ca"}, "California, United States"},
		{"with location", map[string]string{"country": "in", "subdivision": "mh", "project_location": "Pune"}, "Pune, Maharashtra, India"},
		{"stale subdivision dropped", map[string]string{"country": "ca", "subdivision": "tx"}, "Canada"},
		{"no country", map[string]string{"project_location": "Pune"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, "POST", "/jurisdictions/resolve", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if got := decodeBody(t, w)["jurisdiction"]; got != tt.expected {
				t.Errorf("Expected %q, got %v", tt.expected, got)
			}
		})
	}
}
