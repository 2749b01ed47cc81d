package overpass

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pharmadir/internal/model"
)

// Tag keys consulted during normalization. Everything else is ignored.
const (
	tagName        = "name"
	tagNameFR      = "name:fr"
	tagAddrFull    = "addr:full"
	tagHouseNumber = "addr:housenumber"
	tagStreet      = "addr:street"
)

// response is the subset of the Overpass JSON payload we read.
type response struct {
	Remark   string    `json:"remark"`
	Elements []element `json:"elements"`
}

type point struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *point            `json:"center"`
	Tags   map[string]string `json:"tags"`
}

// ParseResponse decodes an Overpass JSON payload into normalized records.
// A runtime-error remark means the server gave up and the element list is
// incomplete, so it is reported as an error.
func ParseResponse(r io.Reader) ([]model.RawRecord, error) {
	var resp response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, eris.Wrap(err, "overpass: decode response")
	}
	if strings.Contains(strings.ToLower(resp.Remark), "runtime error") {
		return nil, eris.Errorf("overpass: server remark: %s", resp.Remark)
	}

	records := make([]model.RawRecord, 0, len(resp.Elements))
	for _, e := range resp.Elements {
		rec, ok := e.record()
		if !ok {
			zap.L().Debug("overpass: skipping element without type or id",
				zap.String("type", e.Type),
				zap.Int64("id", e.ID),
			)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (e element) record() (model.RawRecord, bool) {
	switch e.Type {
	case "node", "way", "relation":
	default:
		return model.RawRecord{}, false
	}
	if e.ID <= 0 {
		return model.RawRecord{}, false
	}

	return model.RawRecord{
		ExternalID: e.Type + "/" + strconv.FormatInt(e.ID, 10),
		Name:       normalizeName(e.Tags),
		Address:    normalizeAddress(e.Tags),
		Coordinate: e.coordinate(),
	}, true
}

// coordinate prefers the element's own point, then the computed center.
func (e element) coordinate() *model.Coordinate {
	if e.Lat != nil && e.Lon != nil {
		return &model.Coordinate{Lat: *e.Lat, Lon: *e.Lon}
	}
	if e.Center != nil && e.Center.Lat != nil && e.Center.Lon != nil {
		return &model.Coordinate{Lat: *e.Center.Lat, Lon: *e.Center.Lon}
	}
	return nil
}

func normalizeName(tags map[string]string) string {
	for _, k := range []string{tagName, tagNameFR} {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return model.DefaultName
}

func normalizeAddress(tags map[string]string) string {
	if full := strings.TrimSpace(tags[tagAddrFull]); full != "" {
		return full
	}
	street := strings.TrimSpace(tags[tagStreet])
	if street == "" {
		return ""
	}
	if num := strings.TrimSpace(tags[tagHouseNumber]); num != "" {
		return num + " " + street
	}
	return street
}
