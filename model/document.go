package model

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// DocumentType is the key of a contract template the generator can draft
type DocumentType string

const (
	DocumentNonDisclosure  DocumentType = "non-disclosure"
	DocumentEmployment     DocumentType = "employment"
	DocumentService        DocumentType = "service"
	DocumentPartnership    DocumentType = "partnership"
	DocumentLegalAgreement DocumentType = "legal-agreement"
	DocumentSaleDeed       DocumentType = "sale-deed"
)

// FallbackDocumentLabel is used for keys outside the known set
const FallbackDocumentLabel = "Legal Document"

var documentLabels = map[DocumentType]string{
	DocumentNonDisclosure:  "Non-Disclosure Agreement",
	DocumentEmployment:     "Employment Contract",
	DocumentService:        "Service Agreement",
	DocumentPartnership:    "Partnership Agreement",
	DocumentLegalAgreement: "Legal Agreement",
	DocumentSaleDeed:       "Sale Deed",
}

// DocumentTypes lists the known keys in display order
var DocumentTypes = []DocumentType{
	DocumentNonDisclosure,
	DocumentEmployment,
	DocumentService,
	DocumentPartnership,
	DocumentLegalAgreement,
	DocumentSaleDeed,
}

// Label returns the human-readable name, or FallbackDocumentLabel
func (d DocumentType) Label() string {
	if label, ok := documentLabels[d]; ok {
		return label
	}
	return FallbackDocumentLabel
}

// Known reports whether d is one of DocumentTypes
func (d DocumentType) Known() bool {
	_, ok := documentLabels[d]
	return ok
}

// Upload limits
const (
	MaxUploadSize = 10 * 1024 * 1024

	MediaTypePDF  = "application/pdf"
	MediaTypeDOC  = "application/msword"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	ErrFileTooLarge         = errors.New("file exceeds the 10 MB upload limit")
	ErrUnsupportedMediaType = errors.New("only PDF, DOC and DOCX files are supported")
)

var extensionMediaTypes = map[string]string{
	".pdf":  MediaTypePDF,
	".doc":  MediaTypeDOC,
	".docx": MediaTypeDOCX,
}

// UploadedFile is a document the visitor attached for analysis
type UploadedFile struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MediaType  string    `json:"media_type"`
	Content    []byte    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ValidateUpload checks size and media type and returns the normalized media type.
// An empty or application/octet-stream declaration falls back to the file extension.
func ValidateUpload(name string, size int64, declared string) (string, error) {
	if size > MaxUploadSize {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}

	mediaType := ""
	if declared != "" {
		parsed, _, err := mime.ParseMediaType(declared)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, declared)
		}
		mediaType = strings.ToLower(parsed)
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = extensionMediaTypes[strings.ToLower(filepath.Ext(name))]
	}

	switch mediaType {
	case MediaTypePDF, MediaTypeDOC, MediaTypeDOCX:
		return mediaType, nil
	}
	if mediaType == "" {
		mediaType = declared
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mediaType)
}
