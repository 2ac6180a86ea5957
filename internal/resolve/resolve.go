// Package resolve is the single place listing values and images are looked
// up, shared by the wizard, the detail view and the admin review.
package resolve

import (
	"encoding/json"
	"strings"

	"classifieds-template-service/internal/domain"
)

// DefaultPlaceholderImage is returned when a listing has no image anywhere.
const DefaultPlaceholderImage = "https://via.placeholder.com/800x600?text=No+Image"

// ResolveValue returns the field's effective value. custom_fields wins over a
// same-named listing column, which wins over the legacy details bag. A key
// that is present counts as a hit even when its value is null.
func ResolveValue(listing *domain.Listing, field domain.Field) (domain.Value, bool) {
	return ResolveName(listing, field.FieldName)
}

// ResolveName is ResolveValue keyed by a bare storage name.
func ResolveName(listing *domain.Listing, name string) (domain.Value, bool) {
	if listing == nil || name == "" {
		return domain.Value{}, false
	}
	if v, ok := listing.CustomFields.Lookup(name); ok {
		return v, true
	}
	if v, ok := listing.Property(name); ok {
		return v, true
	}
	if v, ok := listing.Details.Lookup(name); ok {
		return v, true
	}
	return domain.Value{}, false
}

// ResolveImages lists the listing's image URLs. Template image and file fields
// are authoritative; the legacy columns are only consulted when they yield
// nothing. The result is never empty: placeholder stands in when nothing is
// found, DefaultPlaceholderImage when placeholder is blank.
func ResolveImages(listing *domain.Listing, steps []domain.Step, placeholder string) []string {
	if placeholder == "" {
		placeholder = DefaultPlaceholderImage
	}
	if listing == nil {
		return []string{placeholder}
	}

	var urls []string
	for _, st := range steps {
		for _, f := range st.Fields {
			if f.FieldType != domain.FieldImage && f.FieldType != domain.FieldFile {
				continue
			}
			if v, ok := ResolveValue(listing, f); ok {
				urls = append(urls, URLs(v)...)
			}
		}
	}
	if len(urls) > 0 {
		return urls
	}

	if urls = legacyImages(listing); len(urls) > 0 {
		return urls
	}
	return []string{placeholder}
}

func legacyImages(listing *domain.Listing) []string {
	if listing.ImageURL != nil && strings.TrimSpace(*listing.ImageURL) != "" {
		return []string{*listing.ImageURL}
	}
	if listing.Image != nil && strings.TrimSpace(*listing.Image) != "" {
		return []string{*listing.Image}
	}
	for _, m := range listing.MediaURLs {
		if m.Type == string(domain.FieldImage) && m.URL != "" {
			return []string{m.URL}
		}
	}
	if v, ok := listing.CustomFields.Lookup("images"); ok && v.Kind() == domain.KindList {
		if urls := URLs(v); len(urls) > 0 {
			return urls
		}
	}
	return nonBlank(listing.Images)
}

// URLs flattens a stored media value into URLs. Accepted shapes: a bare URL,
// a JSON-encoded array string, a list (nested lists flattened) and objects
// carrying a "url" key.
func URLs(v domain.Value) []string {
	switch v.Kind() {
	case domain.KindString:
		s := strings.TrimSpace(v.Text())
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "[") {
			var decoded domain.Value
			if err := json.Unmarshal([]byte(s), &decoded); err == nil && decoded.Kind() == domain.KindList {
				return URLs(decoded)
			}
		}
		return []string{s}
	case domain.KindList:
		var out []string
		for _, item := range v.Items() {
			out = append(out, URLs(item)...)
		}
		return out
	case domain.KindObject:
		if u, ok := v.Fields()["url"]; ok {
			return URLs(u)
		}
	}
	return nil
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// MediaByField groups a listing's media_urls by the field they belong to.
// One entry yields a string value, several yield a list in stored order.
func MediaByField(media []domain.MediaURL) domain.Values {
	grouped := map[string][]string{}
	var order []string
	for _, m := range media {
		if m.FieldName == "" || m.URL == "" {
			continue
		}
		if _, ok := grouped[m.FieldName]; !ok {
			order = append(order, m.FieldName)
		}
		grouped[m.FieldName] = append(grouped[m.FieldName], m.URL)
	}
	out := make(domain.Values, len(order))
	for _, name := range order {
		urls := grouped[name]
		if len(urls) == 1 {
			out[name] = domain.String(urls[0])
			continue
		}
		out[name] = domain.Strings(urls...)
	}
	return out
}
