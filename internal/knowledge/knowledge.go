package knowledge

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"chemlab/internal/model"
)

var (
	//go:embed topics.yaml
	topicsRawYAML []byte

	//go:embed elements.json
	elementsRawJSON []byte
)

// Catalog is the canned chatbot knowledge: ordered topics, question
// patterns and the reply used when nothing matches.
type Catalog struct {
	Topics   []model.KnowledgeTopic `yaml:"topics"`
	Patterns []model.ChatPattern    `yaml:"patterns"`
	Fallback string                 `yaml:"fallback"`
}

// BaseCatalog parses the embedded topics file.
func BaseCatalog() (Catalog, error) {
	return ParseCatalog(topicsRawYAML)
}

func ParseCatalog(raw []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parse knowledge catalog: %w", err)
	}
	topics := catalog.Topics[:0]
	for _, topic := range catalog.Topics {
		topic.Topic = strings.TrimSpace(topic.Topic)
		if topic.Topic == "" || len(topic.Responses) == 0 {
			continue
		}
		topics = append(topics, topic)
	}
	catalog.Topics = topics
	if strings.TrimSpace(catalog.Fallback) == "" {
		return Catalog{}, fmt.Errorf("parse knowledge catalog: fallback reply is empty")
	}
	return catalog, nil
}

// MustBaseCatalog panics when the embedded file is broken, which can only
// happen at build time.
func MustBaseCatalog() Catalog {
	catalog, err := BaseCatalog()
	if err != nil {
		panic(err)
	}
	return catalog
}

var elements = mustLoadElements()

func mustLoadElements() []model.Element {
	var list []model.Element
	if err := json.Unmarshal(elementsRawJSON, &list); err != nil {
		panic(fmt.Sprintf("parse embedded elements: %v", err))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].AtomicNumber < list[j].AtomicNumber
	})
	return list
}

func Elements() []model.Element {
	return append([]model.Element(nil), elements...)
}

func ElementByNumber(n int) (model.Element, bool) {
	idx := sort.Search(len(elements), func(i int) bool {
		return elements[i].AtomicNumber >= n
	})
	if idx < len(elements) && elements[idx].AtomicNumber == n {
		return elements[idx], true
	}
	return model.Element{}, false
}

// SearchElements matches the symbol exactly or the English/Arabic name as a
// substring, ignoring case.
func SearchElements(query string) []model.Element {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Elements()
	}
	result := make([]model.Element, 0)
	for _, el := range elements {
		if strings.ToLower(el.Symbol) == q ||
			strings.Contains(strings.ToLower(el.Name), q) ||
			strings.Contains(el.NameAr, q) {
			result = append(result, el)
		}
	}
	return result
}
