package vo

type Text string

// Image is one file of a numbered image slot.
type Image struct {
	Slot int    `json:"slot"`
	URL  string `json:"url"`
}

type Media struct {
	Images       []Image `json:"images"`
	HeroImage    *string `json:"hero_image,omitempty"`
	Cover        *string `json:"cover,omitempty"`
	Avatar       *string `json:"avatar,omitempty"`
	SquareImage1 *string `json:"square_image_1,omitempty"`
	SquareImage2 *string `json:"square_image_2,omitempty"`
}

type Videos struct {
	Video1 *string `json:"video_1,omitempty"`
	Video2 *string `json:"video_2,omitempty"`
}

// Entity is the flattened business record projected from a database page.
type Entity struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Services    []string `json:"services"`
	Description string   `json:"description"`
	Website     string   `json:"website"`
	Tagline     string   `json:"tagline"`
	Slug        string   `json:"slug"`
	Media       Media    `json:"media"`
	Videos      Videos   `json:"videos"`
}

// EntityQuery narrows a database query. At most one intent becomes the filter.
type EntityQuery struct {
	Highlighted *bool    `json:"highlighted,omitempty"`
	Services    []string `json:"services,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

type SearchResponse struct {
	Results    []any   `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

type PageContent struct {
	Content []any `json:"content"` // raw blocks
	Text    Text  `json:"text"`    // blocks rendered as plain text
}

type ParentType string

const (
	ParentTypeDatabase ParentType = "database"
	ParentTypePage     ParentType = "page"
)

type Parent struct {
	Type ParentType `json:"type"`
	ID   string     `json:"id"`
}

// Key is the member name Notion expects inside the parent object.
func (p Parent) Key() string {
	if p.Type == ParentTypeDatabase {
		return "database_id"
	}
	return "page_id"
}

type CreatePage struct {
	ParentID   string         `json:"parent_id"`
	ParentType ParentType     `json:"parent_type,omitempty"`
	Properties map[string]any `json:"properties"`
	Content    []any          `json:"content,omitempty"` // raw blocks, wins over Text
	Text       string         `json:"text,omitempty"`    // plain text turned into paragraphs
}
