package access

// Policy is a statically declared map from operation identifier (e.g.
// "GET /audit/events") to the role set allowed to perform it. The decision
// point consults it through the route guard; there is no runtime route
// metadata or reflection. An operation absent from the map, or mapped to
// an empty set, is public.
type Policy map[string][]string

// Roles returns the required-role set for an operation identifier.
func (p Policy) Roles(op string) []string {
	return p[op]
}
