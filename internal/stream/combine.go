package stream

import "errors"

// mergedFields are the auxiliary page fields folded together across pages.
var mergedFields = []string{"test", "tests", "measurements", "data"}

var errNoPagesToCombine = errors.New("no pages to combine")

// CombinePages merges pages into one document. The first page is the base; results
// arrays are concatenated in arrival order; array fields of mergedFields are appended
// and object fields shallow-merged with later pages winning. total_pages and
// pages_combined are always set, and the per-page "page" field is dropped.
func CombinePages(pages []map[string]any) (map[string]any, error) {
	if len(pages) == 0 {
		return nil, errNoPagesToCombine
	}

	combined := make(map[string]any, len(pages[0])+2)
	for k, v := range pages[0] {
		combined[k] = v
	}
	delete(combined, "page")

	numbers := make([]any, len(pages))
	var results []any
	for i, page := range pages {
		numbers[i] = pageNumber(page, i)
		if rs, ok := page["results"].([]any); ok {
			results = append(results, rs...)
		}
	}
	combined["total_pages"] = len(pages)
	combined["pages_combined"] = numbers
	if len(results) > 0 {
		combined["results"] = results
	}

	for _, page := range pages[1:] {
		for _, field := range mergedFields {
			switch v := page[field].(type) {
			case []any:
				existing, _ := combined[field].([]any)
				merged := make([]any, 0, len(existing)+len(v))
				combined[field] = append(append(merged, existing...), v...)
			case map[string]any:
				existing, _ := combined[field].(map[string]any)
				merged := make(map[string]any, len(existing)+len(v))
				for k, x := range existing {
					merged[k] = x
				}
				for k, x := range v {
					merged[k] = x
				}
				combined[field] = merged
			}
		}
	}
	return combined, nil
}

// pageNumber is the page's own "page" value when set, else its 1-based arrival index.
func pageNumber(page map[string]any, idx int) any {
	switch v := page["page"].(type) {
	case nil:
	case float64:
		if v != 0 {
			return v
		}
	case string:
		if v != "" {
			return v
		}
	case bool:
		if v {
			return v
		}
	default:
		return v
	}
	return idx + 1
}
