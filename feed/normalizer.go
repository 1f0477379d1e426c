/*
Package feed fetches job feeds over HTTP and normalizes their payloads.

Publishers serve listings in divergent RSS and Atom shapes; Normalize reduces
whichever shape arrives to the canonical types.Posting record via per-field
fallback chains.
*/
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/jobwire-io/job-import-backend/types"
)

// extractor resolves one field of a canonical posting from a raw feed item.
// Chains of extractors are tried in order; the first non-empty result wins.
type extractor func(item *gofeed.Item) string

var (
	// guid → id → link (gofeed folds RSS <guid> and Atom <id> into GUID)
	identityChain = []extractor{
		func(it *gofeed.Item) string { return it.GUID },
		func(it *gofeed.Item) string { return it.Link },
	}

	// title → dc:title
	titleChain = []extractor{
		func(it *gofeed.Item) string { return it.Title },
		dublinCore(func(dc *dcFields) string { return first(dc.Title) }),
	}

	// description → summary → content:encoded (gofeed maps Atom <summary>
	// into Description and <content:encoded> into Content)
	bodyChain = []extractor{
		func(it *gofeed.Item) string { return it.Description },
		func(it *gofeed.Item) string { return it.Content },
	}

	// dc:creator → author
	companyChain = []extractor{
		dublinCore(func(dc *dcFields) string { return first(dc.Creator) }),
		func(it *gofeed.Item) string {
			if it.Author != nil {
				return it.Author.Name
			}
			return ""
		},
	}

	// namespaced <*:location> extension → plain <location> element
	locationChain = []extractor{
		extensionValue("location"),
		customValue("location"),
	}
)

// dcFields is the subset of the Dublin Core extension the chains consult.
type dcFields struct {
	Title   []string
	Creator []string
}

func dublinCore(pick func(*dcFields) string) extractor {
	return func(it *gofeed.Item) string {
		if it.DublinCoreExt == nil {
			return ""
		}
		return pick(&dcFields{
			Title:   it.DublinCoreExt.Title,
			Creator: it.DublinCoreExt.Creator,
		})
	}
}

// extensionValue looks for a namespaced element (e.g. <job:location>) under
// any extension namespace of the item.
func extensionValue(name string) extractor {
	return func(it *gofeed.Item) string {
		for _, ns := range it.Extensions {
			for _, ext := range ns[name] {
				if v := strings.TrimSpace(ext.Value); v != "" {
					return v
				}
			}
		}
		return ""
	}
}

// customValue reads an un-namespaced element gofeed could not classify.
func customValue(name string) extractor {
	return func(it *gofeed.Item) string {
		return it.Custom[name]
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func resolve(item *gofeed.Item, chain []extractor) string {
	for _, ex := range chain {
		if v := strings.TrimSpace(ex(item)); v != "" {
			return v
		}
	}
	return ""
}

// Normalize parses a raw feed payload into an ordered slice of canonical
// posting candidates. It is a pure function: no I/O, no stored state.
//
// A document that fails to parse at all returns an error (a fetch-level
// failure to the caller). Individual items lacking both an identity and a
// link are silently dropped; they cannot be deduplicated and malformed
// single items are expected from the wild.
func Normalize(payload []byte, sourceURL string) ([]types.Posting, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var postings []types.Posting
	for _, item := range parsed.Items {
		if p, ok := normalizeItem(item, sourceURL); ok {
			postings = append(postings, p)
		}
	}
	return postings, nil
}

func normalizeItem(item *gofeed.Item, sourceURL string) (types.Posting, bool) {
	externalID := resolve(item, identityChain)
	link := strings.TrimSpace(item.Link)
	if externalID == "" && link == "" {
		return types.Posting{}, false
	}
	if externalID == "" {
		externalID = link
	}

	return types.Posting{
		SourceURL:   sourceURL,
		ExternalID:  externalID,
		Title:       resolve(item, titleChain),
		Description: resolve(item, bodyChain),
		Company:     resolve(item, companyChain),
		Location:    resolve(item, locationChain),
		Link:        link,
		PublishedAt: publishedAt(item),
		Raw:         rawCopy(item),
	}, true
}

// publishedAt resolves pubDate → published → updated. gofeed already
// attempts RFC-2822 and ISO-8601 style parses; an unparseable date leaves
// the parsed pointer nil and the posting timestamp absent.
func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

// rawCopy keeps an opaque JSON snapshot of the source item so imports can be
// replayed forensically. Marshal failure leaves the copy empty rather than
// failing the item.
func rawCopy(item *gofeed.Item) json.RawMessage {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil
	}
	return raw
}
