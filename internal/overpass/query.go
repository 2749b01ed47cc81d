package overpass

import (
	"fmt"
	"strings"
)

// DefaultQueryTimeoutSecs is the server-side timeout embedded in each query.
const DefaultQueryTimeoutSecs = 25

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// BuildQuery returns the Overpass QL selecting every pharmacy node, way and
// relation inside the administrative boundary named region. Ways and
// relations are returned with their computed center.
func BuildQuery(region string, timeoutSecs int) string {
	if timeoutSecs <= 0 {
		timeoutSecs = DefaultQueryTimeoutSecs
	}
	name := quoteEscaper.Replace(region)
	return fmt.Sprintf(`[out:json][timeout:%d];
area["name"="%s"]["boundary"="administrative"]->.region;
(
  node["amenity"="pharmacy"](area.region);
  way["amenity"="pharmacy"](area.region);
  relation["amenity"="pharmacy"](area.region);
);
out center;
`, timeoutSecs, name)
}
