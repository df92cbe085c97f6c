package ingestion

import (
	"path"
	"strings"
)

// InferredMetadata holds the document category and language inferred from a
// library path. This is best-effort classification attached to every chunk a
// document produces; it never affects retrieval scores.
type InferredMetadata struct {
	// Category classifies the document kind (policy, manual, notice, form, general).
	Category string
	// Language is the best-effort language label (pt, en, unknown).
	Language string
}

// categoryKeywords lists filename and folder fragments with their canonical
// category. Portuguese and English variants are both recognized since the
// libraries this service indexes mix the two. Order matters: the first
// matching fragment wins, so a path like "manual-politica-ferias" always
// classifies the same way.
var categoryKeywords = []struct {
	fragment string
	category string
}{
	{"politica", "policy"},
	{"policy", "policy"},
	{"norma", "policy"},
	{"comunicado", "notice"},
	{"aviso", "notice"},
	{"notice", "notice"},
	{"circular", "notice"},
	{"formulario", "form"},
	{"requerimento", "form"},
	{"form", "form"},
	{"manual", "manual"},
	{"guia", "manual"},
	{"guide", "manual"},
	{"tutorial", "manual"},
}

// languageHints lists basename suffixes with their language label.
var languageHints = []struct {
	hint string
	lang string
}{
	{"_pt", "pt"},
	{"-pt", "pt"},
	{"_en", "en"},
	{"-en", "en"},
}

// InferMetadata inspects a document's library path and returns best-effort
// metadata. Unmatched paths get ("general", "unknown").
func InferMetadata(docPath string) InferredMetadata {
	m := InferredMetadata{
		Category: "general",
		Language: "unknown",
	}

	lower := strings.ToLower(docPath)
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, kw.fragment) {
			m.Category = kw.category
			break
		}
	}

	base := strings.TrimSuffix(path.Base(lower), path.Ext(lower))
	for _, h := range languageHints {
		if strings.HasSuffix(base, h.hint) {
			m.Language = h.lang
			break
		}
	}

	return m
}
