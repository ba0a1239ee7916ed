package mapping

// BuildFilter turns the entity query intents into a Notion filter object.
// Only one intent is honored: a non-empty services list replaces the
// highlighted flag and only its first entry is matched. Nil means no filter.
func BuildFilter(highlighted *bool, services []string) map[string]any {
	var filter map[string]any
	if highlighted != nil {
		filter = map[string]any{
			"property": PropertyHighlighted,
			"checkbox": map[string]any{
				"equals": *highlighted,
			},
		}
	}
	if len(services) > 0 {
		filter = map[string]any{
			"property": PropertyServices,
			"multi_select": map[string]any{
				"contains": services[0],
			},
		}
	}
	return filter
}
