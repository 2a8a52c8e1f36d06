package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for work session documents.
//
// Title and description get English stemming. Tags use the simple analyzer so
// "Drainage" and "drainage" match without stemming compound names. owner_id
// and id are keywords used only for exact filtering.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = en.AnalyzerName
	title.Store = true
	title.IncludeTermVectors = true // highlighting
	doc.AddFieldMappingsAt("title", title)

	// Not stored; descriptions can be long.
	description := bleve.NewTextFieldMapping()
	description.Analyzer = en.AnalyzerName
	description.Store = false
	doc.AddFieldMappingsAt("description", description)

	tags := bleve.NewTextFieldMapping()
	tags.Analyzer = simple.Name
	tags.Store = true
	doc.AddFieldMappingsAt("tags", tags)

	for _, field := range []string{"id", "owner_id"} {
		kw := bleve.NewTextFieldMapping()
		kw.Analyzer = keyword.Name
		kw.Store = field == "id"
		doc.AddFieldMappingsAt(field, kw)
	}

	for _, field := range []string{"time_minutes", "number_people", "created_at", "updated_at"} {
		num := bleve.NewNumericFieldMapping()
		num.Store = true
		doc.AddFieldMappingsAt(field, num)
	}

	indexMapping.AddDocumentMapping("_default", doc)
	return indexMapping
}
