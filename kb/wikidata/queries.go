package wikidata

import (
	"fmt"
	"strings"

	"github.com/teranos/softwaremap/kb"
)

// Well-known items
const (
	SoftwareClass  = "Q7397" // software
	VideoGameClass = "Q7889" // video game
)

// PropertyIDs maps each property kind to the Wikidata property queried for it
var PropertyIDs = map[kb.PropertyKind]string{
	kb.KindInception:         "P571",
	kb.KindPointInTime:       "P585",
	kb.KindPublication:       "P577",
	kb.KindEarliest:          "P1319",
	kb.KindLatest:            "P1326",
	kb.KindProduction:        "P2754",
	kb.KindStartTime:         "P580",
	kb.KindFirstInstance:     "P1249",
	kb.KindCommercialization: "P5204",
}

func labelService(lang string) string {
	return fmt.Sprintf(`SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }`, lang)
}

// DatesQuery selects every software item with a value for the kind's property
func DatesQuery(pid, lang string) string {
	return fmt.Sprintf(`SELECT ?item ?itemLabel ?date WHERE {
  ?item wdt:P31/wdt:P279* wd:%s ;
        wdt:%s ?date .
  %s
}`, SoftwareClass, pid, labelService(lang))
}

// SoftwareQuery selects direct instances of any subclass of software, with the class
func SoftwareQuery(lang string) string {
	return fmt.Sprintf(`SELECT DISTINCT ?item ?itemLabel ?type ?typeLabel WHERE {
  ?item wdt:P31 ?type .
  ?type wdt:P279* wd:%s .
  %s
}`, SoftwareClass, labelService(lang))
}

// ClassesQuery selects direct subclass edges inside the software class tree
func ClassesQuery(lang string) string {
	return fmt.Sprintf(`SELECT DISTINCT ?class ?classLabel ?parent ?parentLabel WHERE {
  ?class wdt:P279* wd:%[1]s .
  ?class wdt:P279 ?parent .
  ?parent wdt:P279* wd:%[1]s .
  %[2]s
}`, SoftwareClass, labelService(lang))
}

// GenresQuery selects video games with their genres
func GenresQuery(lang string) string {
	return fmt.Sprintf(`SELECT DISTINCT ?item ?genre ?genreLabel WHERE {
  ?item wdt:P31/wdt:P279* wd:%s ;
        wdt:P136 ?genre .
  %s
}`, VideoGameClass, labelService(lang))
}

// DescriptionsQuery selects the description in lang for each of ids.
// ids must already be validated item IDs.
func DescriptionsQuery(ids []string, lang string) string {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = "wd:" + id
	}
	return fmt.Sprintf(`SELECT ?item ?description WHERE {
  VALUES ?item { %s }
  ?item schema:description ?description .
  FILTER(LANG(?description) = "%s")
}`, strings.Join(values, " "), lang)
}
