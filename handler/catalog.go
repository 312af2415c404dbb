package handler

import (
	"net/http"

	"github.com/arjunpratapdas/contractiq/model"
	"github.com/arjunpratapdas/contractiq/service"
	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the static option lists of the tools page
type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

type countryView struct {
	Code            string           `json:"code"`
	Label           string           `json:"label"`
	HasSubdivisions bool             `json:"has_subdivisions"`
	Subdivisions    []service.Region `json:"subdivisions"`
}

func viewCountry(c service.Country) countryView {
	entries := c.Subdivisions.Entries()
	if entries == nil {
		entries = []service.Region{}
	}
	return countryView{
		Code:            c.Code,
		Label:           c.Label,
		HasSubdivisions: c.Subdivisions.Defined(),
		Subdivisions:    entries,
	}
}

func (h *CatalogHandler) DocumentTypes(c *gin.Context) {
	types := make([]gin.H, 0, len(model.DocumentTypes))
	for _, d := range model.DocumentTypes {
		types = append(types, gin.H{"key": d, "label": d.Label()})
	}
	c.JSON(http.StatusOK, gin.H{"document_types": types})
}

func (h *CatalogHandler) Jurisdictions(c *gin.Context) {
	countries := service.Countries()
	views := make([]countryView, 0, len(countries))
	for _, country := range countries {
		views = append(views, viewCountry(country))
	}
	c.JSON(http.StatusOK, gin.H{"countries": views})
}

func (h *CatalogHandler) Subdivisions(c *gin.Context) {
	country, ok := service.LookupCountry(c.Param("country"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success":   false,
			"error":     "Country not found",
			"kind":      service.KindNotFound,
			"retryable": false,
		})
		return
	}
	c.JSON(http.StatusOK, viewCountry(country))
}

type ResolveRequest struct {
	Country         string `json:"country"`
	Subdivision     string `json:"subdivision"`
	ProjectLocation string `json:"project_location"`
}

// Resolve previews the jurisdiction string for a form selection
func (h *CatalogHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jurisdiction": service.Resolve(req.Country, req.Subdivision, req.ProjectLocation),
	})
}
