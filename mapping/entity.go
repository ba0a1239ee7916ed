package mapping

import (
	"fmt"

	"github.com/foomo/notion-mcp/service/vo"
)

const (
	PropertyBrandName   = "Brand Name"
	PropertyServices    = "Services"
	PropertyDescription = "Description"
	PropertyTagline     = "Tagline"
	PropertySlug        = "Slug"
	PropertyWebsite     = "Website"
	PropertyHighlighted = "00. Highlighted"

	numberedImageSlots = 10
)

// single image slots, first file only
var singleImageSlots = []struct {
	property string
	assign   func(m *vo.Media, url string)
}{
	{"Hero Image", func(m *vo.Media, url string) { m.HeroImage = &url }},
	{"Cover", func(m *vo.Media, url string) { m.Cover = &url }},
	{"Avatar", func(m *vo.Media, url string) { m.Avatar = &url }},
	{"Image [7.1] square image", func(m *vo.Media, url string) { m.SquareImage1 = &url }},
	{"Image [7.2] square image", func(m *vo.Media, url string) { m.SquareImage2 = &url }},
}

var videoSlots = []struct {
	property string
	assign   func(v *vo.Videos, url string)
}{
	{"Video 1", func(v *vo.Videos, url string) { v.Video1 = &url }},
	{"Video 2", func(v *vo.Videos, url string) { v.Video2 = &url }},
}

// NumberedImageProperty names the file property of a numbered image slot.
func NumberedImageProperty(slot int) string {
	return fmt.Sprintf("Image [%d]", slot)
}

// ProjectEntities keeps the pages that yield an entity, in input order.
func ProjectEntities(pages []any) []vo.Entity {
	entities := make([]vo.Entity, 0, len(pages))
	for _, page := range pages {
		if entity, ok := ProjectEntity(page); ok {
			entities = append(entities, entity)
		}
	}
	return entities
}

// ProjectEntity flattens a database page. Only a missing id or an empty
// brand name title rejects the page; every other field falls back to its
// zero value. A title run with empty text still yields an entity.
func ProjectEntity(page any) (vo.Entity, bool) {
	p := Of(page)
	id, ok := p.Get("id").AsString()
	if !ok || id == "" {
		return vo.Entity{}, false
	}
	props := p.Get("properties")
	name, ok := firstRunText(props.Path(PropertyBrandName, "title"))
	if !ok {
		return vo.Entity{}, false
	}
	return vo.Entity{
		ID:          id,
		Name:        name,
		Services:    multiSelectNames(props.Get(PropertyServices)),
		Description: richTextProperty(props.Get(PropertyDescription)),
		Website:     props.Path(PropertyWebsite, "url").StringOr(""),
		Tagline:     richTextProperty(props.Get(PropertyTagline)),
		Slug:        richTextProperty(props.Get(PropertySlug)),
		Media:       projectMedia(props),
		Videos:      projectVideos(props),
	}, true
}

func firstRunText(runs Value) (string, bool) {
	return runText(runs.Index(0))
}

func richTextProperty(prop Value) string {
	text, _ := firstRunText(prop.Get("rich_text"))
	return text
}

func multiSelectNames(prop Value) []string {
	names := []string{}
	options, _ := prop.Get("multi_select").AsArray()
	for _, option := range options {
		if name, ok := option.Get("name").AsString(); ok {
			names = append(names, name)
		}
	}
	return names
}

// fileURL resolves a file entry: a direct url, an uploaded file or an external link.
func fileURL(file Value) (string, bool) {
	for _, path := range [][]any{{"url"}, {"file", "url"}, {"external", "url"}} {
		if url, ok := file.Path(path...).AsString(); ok && url != "" {
			return url, true
		}
	}
	return "", false
}

func projectMedia(props Value) vo.Media {
	media := vo.Media{Images: []vo.Image{}}
	for slot := 1; slot <= numberedImageSlots; slot++ {
		files, _ := props.Path(NumberedImageProperty(slot), "files").AsArray()
		for _, file := range files {
			if url, ok := fileURL(file); ok {
				media.Images = append(media.Images, vo.Image{Slot: slot, URL: url})
			}
		}
	}
	for _, s := range singleImageSlots {
		if url, ok := fileURL(props.Path(s.property, "files", 0)); ok {
			s.assign(&media, url)
		}
	}
	return media
}

func projectVideos(props Value) vo.Videos {
	var videos vo.Videos
	for _, s := range videoSlots {
		if url, ok := props.Path(s.property, "url").AsString(); ok && url != "" {
			s.assign(&videos, url)
		}
	}
	return videos
}
