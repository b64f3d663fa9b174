package search

// Kind selects the search vertical, which is also the endpoint path.
type Kind string

const (
	KindSearch Kind = "search"
	KindNews   Kind = "news"
	KindImages Kind = "images"
	KindVideos Kind = "videos"
)

// Query is the JSON body of a search request.
type Query struct {
	Q        string `json:"q"`
	Country  string `json:"gl,omitempty"`
	Language string `json:"hl,omitempty"`
	Num      int    `json:"num,omitempty"`
	TBS      string `json:"tbs,omitempty"`
	Page     int    `json:"page,omitempty"`

	// Kind defaults to KindSearch
	Kind Kind `json:"-"`
}

// Organic is one organic (or news) result.
type Organic struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date,omitempty"`
	Source   string `json:"source,omitempty"`
	Position int    `json:"position"`
}

// PeopleAlsoAsk is a related question block.
type PeopleAlsoAsk struct {
	Question string `json:"question"`
	Snippet  string `json:"snippet"`
	Title    string `json:"title"`
	Link     string `json:"link"`
}

// RelatedSearch is a suggested follow-up query.
type RelatedSearch struct {
	Query string `json:"query"`
}

// KnowledgeGraph is the entity panel of a result page.
type KnowledgeGraph struct {
	Title       string            `json:"title"`
	Type        string            `json:"type"`
	Website     string            `json:"website"`
	Description string            `json:"description"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// AnswerBox is the direct answer shown above results.
type AnswerBox struct {
	Title   string `json:"title"`
	Answer  string `json:"answer"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Response is a decoded search result page.
type Response struct {
	Organic         []Organic       `json:"organic"`
	News            []Organic       `json:"news,omitempty"`
	PeopleAlsoAsk   []PeopleAlsoAsk `json:"peopleAlsoAsk,omitempty"`
	RelatedSearches []RelatedSearch `json:"relatedSearches,omitempty"`
	KnowledgeGraph  *KnowledgeGraph `json:"knowledgeGraph,omitempty"`
	AnswerBox       *AnswerBox      `json:"answerBox,omitempty"`
}

// Results returns the organic results, or the news results for news queries.
func (r *Response) Results() []Organic {
	if len(r.Organic) == 0 {
		return r.News
	}
	return r.Organic
}
