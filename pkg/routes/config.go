package routes

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the routes file format.
type Config struct {
	Version   string     `yaml:"version"`
	Upstreams []Upstream `yaml:"upstreams"`
	Rules     []RuleSpec `yaml:"rules"`
}

// Upstream specifies a backend service to forward requests to.
type Upstream struct {
	Name string `yaml:"name"`
	Addr string `yaml:"addr"`
}

// RuleSpec specifies a single routing rule. Exactly one of
// forward, static or spa must be set.
type RuleSpec struct {
	Name    string            `yaml:"name"`
	Prefix  string            `yaml:"prefix"`
	Forward *ForwardSpec      `yaml:"forward"`
	Static  *StaticSpec       `yaml:"static"`
	SPA     *SPASpec          `yaml:"spa"`
	Headers map[string]string `yaml:"headers"`
	Quiet   bool              `yaml:"quiet"`
}

// ForwardSpec points a rule at an upstream.
type ForwardSpec struct {
	Upstream string `yaml:"upstream"`
}

// StaticSpec serves files from a directory.
type StaticSpec struct {
	Root      string   `yaml:"root"`
	Cache     Duration `yaml:"cache"`
	Immutable bool     `yaml:"immutable"`
}

// Duration is a time.Duration that unmarshals from a Go duration string,
// e.g. "720h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}

	*d = Duration(v)
	return nil
}

// SPASpec serves the frontend bundle with an index fallback.
type SPASpec struct {
	Root  string `yaml:"root"`
	Index string `yaml:"index"`
}

// Load reads the routes file and builds the routing table from it.
// The table is validated before being returned.
func Load(fileName string) (*Table, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err = yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}

	t, err := cfg.Table()
	if err != nil {
		return nil, fmt.Errorf("build table: %w", err)
	}

	return t, nil
}

// Table translates the parsed config into a routing table.
func (cfg Config) Table() (*Table, error) {
	if cfg.Version != "1" {
		return nil, fmt.Errorf("unsupported version: %s", cfg.Version)
	}

	t := &Table{Upstreams: map[string]*url.URL{}}

	for _, u := range cfg.Upstreams {
		if u.Addr == "" {
			return nil, fmt.Errorf("empty address in upstream %q", u.Name)
		}

		target, err := url.Parse(u.Addr)
		if err != nil {
			return nil, fmt.Errorf("parse upstream %q address: %w", u.Name, err)
		}

		if target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("upstream %q address must be an absolute URL", u.Name)
		}

		t.Upstreams[u.Name] = target
	}

	parseRule := func(r RuleSpec) (*Rule, error) {
		rule := &Rule{
			Name:    r.Name,
			Prefix:  r.Prefix,
			Headers: r.Headers,
			Quiet:   r.Quiet,
		}

		switch {
		case r.Forward != nil && (r.Static != nil || r.SPA != nil),
			r.Static != nil && r.SPA != nil:
			return nil, fmt.Errorf("only one of forward, static or spa may be set")
		case r.Forward != nil:
			rule.Action = ActionForward
			rule.Upstream = r.Forward.Upstream
		case r.Static != nil:
			rule.Action = ActionStatic
			rule.Root = r.Static.Root
			rule.Cache = CachePolicy{MaxAge: time.Duration(r.Static.Cache), Immutable: r.Static.Immutable}
		case r.SPA != nil:
			rule.Action = ActionSPA
			rule.Root = r.SPA.Root
			rule.Index = r.SPA.Index
			if rule.Index == "" {
				rule.Index = "index.html"
			}
		default:
			return nil, fmt.Errorf("no action set")
		}

		return rule, nil
	}

	for idx, r := range cfg.Rules {
		rule, err := parseRule(r)
		if err != nil {
			return nil, fmt.Errorf("parse rule #%d: %w", idx, err)
		}
		t.Rules = append(t.Rules, rule)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	return t, nil
}
