package discovery

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/doernaz/brandlift/internal/normalize"
)

// Website requirements a profile may place on a candidate.
const (
	WebsiteAny     = "any"
	WebsiteAbsent  = "absent"
	WebsitePresent = "present"
)

// DefaultProfile is used when a request names no profile.
const DefaultProfile = "volume"

// Profile is a named set of filter thresholds.
type Profile struct {
	Name       string  `yaml:"name" json:"name"`
	MinRating  float64 `yaml:"min_rating" json:"min_rating"`
	MinReviews int     `yaml:"min_reviews" json:"min_reviews"`
	// Website is any, absent (no own website; the "efficiency vacuum"
	// target) or present.
	Website string `yaml:"website" json:"website"`
}

// BuiltinProfiles are always available and may be overridden by file.
func BuiltinProfiles() []Profile {
	return []Profile{
		{Name: "volume", MinRating: 3.5, MinReviews: 5, Website: WebsiteAny},
		{Name: "high_ticket_artisan", MinRating: 4.5, MinReviews: 25, Website: WebsiteAny},
		{Name: "efficiency_vacuum", MinRating: 4.0, MinReviews: 20, Website: WebsiteAbsent},
	}
}

// Filter shortlists candidates before enrichment. Apply is pure: it never
// mutates its input and holds no per-call state.
type Filter struct {
	profiles  map[string]Profile
	blocklist []string
}

// NewFilter creates a Filter with the builtin profiles. Websites on the
// blocklist do not count as a business's own website.
func NewFilter(blocklist []string) *Filter {
	f := &Filter{profiles: make(map[string]Profile), blocklist: blocklist}
	for _, p := range BuiltinProfiles() {
		f.profiles[p.Name] = p
	}
	return f
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles adds or replaces profiles from a YAML file of the form
// "profiles: [{name, min_rating, min_reviews, website}]".
func (f *Filter) LoadProfiles(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "discovery: read profiles %s", path)
	}
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return eris.Wrapf(err, "discovery: parse profiles %s", path)
	}
	for _, p := range pf.Profiles {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return eris.Errorf("discovery: profile without name in %s", path)
		}
		switch p.Website {
		case "":
			p.Website = WebsiteAny
		case WebsiteAny, WebsiteAbsent, WebsitePresent:
		default:
			return eris.Errorf("discovery: profile %s: invalid website requirement %q", p.Name, p.Website)
		}
		f.profiles[p.Name] = p
	}
	return nil
}

// Profile resolves a profile by name; "" selects DefaultProfile.
func (f *Filter) Profile(name string) (Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := f.profiles[name]
	if !ok {
		return Profile{}, eris.Errorf("discovery: unknown filter profile %q (known: %s)", name, strings.Join(f.ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames lists the known profiles in sorted order.
func (f *Filter) ProfileNames() []string {
	names := make([]string, 0, len(f.profiles))
	for n := range f.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply keeps operational candidates whose rating reaches
// max(minSignal, profile.MinRating), whose review count reaches the
// profile minimum and that satisfy the profile's website requirement.
// Input order is preserved.
func (f *Filter) Apply(candidates []Candidate, minSignal float64, profile string) ([]Candidate, error) {
	p, err := f.Profile(profile)
	if err != nil {
		return nil, err
	}
	minRating := max(minSignal, p.MinRating)

	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if f.keep(c, p, minRating) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *Filter) keep(c Candidate, p Profile, minRating float64) bool {
	if !strings.EqualFold(c.BusinessStatus, StatusOperational) {
		return false
	}
	if strings.TrimSpace(c.DisplayName) == "" {
		return false
	}
	if c.rating() < minRating || c.reviews() < p.MinReviews {
		return false
	}
	hasSite := normalize.OwnDomain(c.WebsiteURI, f.blocklist) != ""
	switch p.Website {
	case WebsiteAbsent:
		return !hasSite
	case WebsitePresent:
		return hasSite
	default:
		return true
	}
}
