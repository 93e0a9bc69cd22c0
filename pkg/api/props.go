package api

// Node property readers for graph query rows. Neo4j returns integers as
// int64; rows from test fakes may carry native Go types instead.

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func propInt64(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func propFloat(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func propBool(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}
