package cleanse

import (
	"strings"

	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/model"
	"github.com/relloyd/starpipe/rules"
)

// Demographics strips the source prefix from ids, drops future birthdates and maps gender.
func (cl *Cleanser) Demographics(raw []model.RawDemographic) ([]model.Demographic, error) {
	now := cl.Now().UTC()
	retval := make([]model.Demographic, 0, len(raw))
	future := 0
	for _, r := range raw {
		birth, err := parseDate(r.BirthDate)
		if err != nil {
			return nil, malformed(c.TableRawDemographics, r.Row, "bdate", r.BirthDate, err)
		}
		if birth != nil && birth.After(now) {
			birth = nil
			future++
		}
		retval = append(retval, model.Demographic{
			Row:         r.Row,
			CustomerKey: stripPrefixFold(strings.TrimSpace(r.CustomerKey), cl.DemographicIDPrefix),
			BirthDate:   birth,
			Gender:      rules.DemographicGender.Lookup(r.Gender),
		})
	}
	cl.Log.Debug("Demographics cleansed: rows in = ", len(raw), "; rows out = ", len(retval), "; future birthdates = ", future)
	return retval, nil
}

func stripPrefixFold(s string, prefix string) string {
	if prefix != "" && len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):]
	}
	return s
}

// Locations removes separators from ids and standardizes countries.
func (cl *Cleanser) Locations(raw []model.RawLocation) ([]model.Location, error) {
	retval := make([]model.Location, len(raw))
	for idx, r := range raw {
		retval[idx] = model.Location{
			Row:         r.Row,
			CustomerKey: strings.ReplaceAll(strings.TrimSpace(r.CustomerKey), "-", ""),
			Country:     rules.Country.Lookup(r.Country),
		}
	}
	cl.Log.Debug("Locations cleansed: rows in = ", len(raw), "; rows out = ", len(retval))
	return retval, nil
}
