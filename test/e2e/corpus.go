// Package e2e runs ingestion and search end to end over a small corpus of
// short documents, each carrying a phrase no other document shares.
package e2e

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperjump/kura/internal/models"
)

// Document is one corpus entry.
type Document struct {
	ID      string
	Title   string
	Content string
}

// QueryCase is a query and the document that must be among its results.
type QueryCase struct {
	Query      string
	ExpectedID string
}

// Corpus holds the documents and their query cases.
type Corpus struct {
	Documents []Document
	Cases     []QueryCase
}

var corpusNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kura:e2e"))

var topics = []struct {
	title, phrase, body string
}{
	{"Harbour Works", "harbour dredging permit", "The council approved the harbour dredging permit on Tuesday. Dredging starts after the fishing season closes."},
	{"Orchard Report", "apple orchard frost", "A late apple orchard frost damaged blossoms in the northern valley. Growers expect a smaller harvest."},
	{"Library Hours", "library opening hours", "The central library opening hours change in winter. Weekend service ends at four."},
	{"Bridge Inspection", "bridge cable inspection", "Engineers finished the bridge cable inspection last week. Two anchors need new coatings."},
	{"Choir Concert", "choir rehearsal schedule", "The choir rehearsal schedule moves to Thursday evenings. The spring concert is sold out."},
	{"Bakery Opening", "sourdough bakery opening", "A sourdough bakery opening on Mill Street drew a long queue. Loaves sold out by noon."},
	{"Rail Timetable", "night train timetable", "The new night train timetable adds a sleeper service. Tickets go on sale next month."},
	{"Museum Exhibit", "bronze age exhibit", "The museum unveiled a bronze age exhibit with tools found near the river. Entry is free on Sundays."},
	{"Water Notice", "boil water notice", "Residents received a boil water notice after a main burst. The notice lifts once tests pass."},
	{"Cycling Lanes", "protected cycling lanes", "The city will paint protected cycling lanes along the boulevard. Parking moves to side streets."},
	{"Beekeeping Club", "beekeeping club swarm", "The beekeeping club swarm alert went out when bees settled in the school garden. Members will rehome the colony."},
	{"Solar Farm", "solar farm inverter", "A faulty solar farm inverter cut output by a third. Replacement parts arrive Friday."},
	{"Chess Tournament", "rapid chess tournament", "The rapid chess tournament attracted forty players. A teenager won every round."},
	{"Ferry Service", "island ferry cancellation", "Storms forced an island ferry cancellation on Monday. Services resume when winds ease."},
	{"Vaccine Clinic", "flu vaccine clinic", "The flu vaccine clinic runs at the community hall. No appointment is needed."},
	{"Pottery Class", "pottery kiln firing", "Students prepared pieces for the pottery kiln firing. Glazes cure over two days."},
	{"Snow Clearing", "snow plough routes", "Snow plough routes prioritise hospitals and schools. Residential streets follow within a day."},
	{"Vineyard Harvest", "vineyard grape harvest", "The vineyard grape harvest began early this year. Pickers work from dawn."},
	{"Startup Funding", "seed funding round", "The robotics startup closed a seed funding round. Hiring starts in the autumn."},
	{"Marathon Route", "marathon route closures", "Marathon route closures affect the old town on Sunday. Buses divert around the course."},
	{"Observatory Night", "telescope viewing night", "The observatory hosts a telescope viewing night for the meteor shower. Bring warm clothes."},
	{"Recycling Change", "glass recycling collection", "Glass recycling collection moves to every second week. Bins must be out by seven."},
	{"Theatre Season", "theatre season tickets", "Theatre season tickets include six productions. Members get early seating."},
	{"Wildfire Drill", "wildfire evacuation drill", "The wildfire evacuation drill tested sirens across the hills. Most households left within twenty minutes."},
}

// BuildCorpus returns one document per topic and one query case per document.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for i, t := range topics {
		id := uuid.NewSHA1(corpusNamespace, []byte(fmt.Sprintf("doc-%02d", i+1))).String()
		c.Documents = append(c.Documents, Document{ID: id, Title: t.title, Content: t.body})
		c.Cases = append(c.Cases, QueryCase{Query: t.phrase, ExpectedID: id})
	}
	return c
}

// Text is the document as it is ingested: title line, blank line, body.
func (d Document) Text() string {
	return d.Title + "\n\n" + d.Content
}

// Inputs converts the documents to ingestion requests.
func (c *Corpus) Inputs() []*models.SourceInput {
	out := make([]*models.SourceInput, len(c.Documents))
	for i, d := range c.Documents {
		out[i] = &models.SourceInput{
			ID:       d.ID,
			Text:     d.Text(),
			Filename: slug(d.Title) + ".txt",
		}
	}
	return out
}

func slug(title string) string {
	return strings.ReplaceAll(strings.ToLower(title), " ", "-")
}

func containsPhrase(d Document, phrase string) bool {
	return strings.Contains(strings.ToLower(d.Text()), strings.ToLower(phrase))
}
