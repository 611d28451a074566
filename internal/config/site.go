package config

import (
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/nao1215/threadscrape/internal/forum"
)

// SiteConfig holds settings for one forum host.
type SiteConfig struct {
	// Template names the forum template used to extract posts.
	Template string `yaml:"template,omitempty"`

	// Cookie is sent with direct requests to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with direct requests.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .threadscrape configuration file.
type File struct {
	// Templates defines forum templates in addition to the built-in ones.
	// A template with a built-in name replaces the built-in.
	Templates map[string]forum.Template `yaml:"templates,omitempty"`

	// Sites maps forum hosts (e.g. "forum.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a thread URL or bare host,
// merged over the defaults.
func (cf *File) GetSiteConfig(target string) SiteConfig {
	result := cf.Defaults
	if result.Headers != nil {
		result.Headers = maps.Clone(result.Headers)
	}

	host := hostOf(target)
	if host == "" {
		return result
	}

	site, ok := cf.Sites[host]
	if !ok {
		site, ok = cf.Sites[strings.TrimPrefix(host, "www.")]
	}
	if !ok {
		return result
	}

	if site.Template != "" {
		result.Template = site.Template
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, site.Headers)
	}

	return result
}

// ResolveTemplate returns the template to use for a thread.
// The override (from --template) wins over the site setting, which wins
// over the built-in default.
func (cf *File) ResolveTemplate(threadURL, override string) (forum.Template, error) {
	name := override
	if name == "" {
		name = cf.GetSiteConfig(threadURL).Template
	}
	if name == "" {
		name = DefaultTemplate
	}

	if tmpl, ok := cf.Templates[name]; ok {
		tmpl.Name = name
		return tmpl, nil
	}
	if tmpl, ok := forum.BuiltinTemplate(name); ok {
		return tmpl, nil
	}

	return forum.Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
}

// hostOf returns the lower-cased host of a URL, or target itself when it
// has no scheme.
func hostOf(target string) string {
	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	if strings.Contains(target, "/") {
		return ""
	}
	return strings.ToLower(target)
}
