// Package deeplink resolves inbound URIs into in-app entities. Links flow
// router -> channel -> dispatcher: the router normalizes both URI families,
// the channel holds at most one unconsumed link, the dispatcher resolves it
// once and clears it.
package deeplink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Entity type tokens accepted in links. A closed set.
const (
	EntityTypeBet       = "bet"
	EntityTypeCommunity = "community"
)

// Link parsing errors.
var (
	// ErrMalformedLink means the URI does not match either accepted family.
	ErrMalformedLink = errors.New("malformed deep link")
	// ErrUnknownLinkType means the shape is valid but the entity type
	// token is not recognized.
	ErrUnknownLinkType = errors.New("unknown deep link type")
)

// ParsedDeepLink is the normalized form of one inbound URI. Both URI
// families produce identical values for the same type/id pair.
type ParsedDeepLink struct {
	EntityType string
	EntityID   string
	ReceivedAt time.Time
}

// Router parses custom-scheme and universal-link URIs.
type Router struct {
	scheme        string
	universalHost string
	now           func() time.Time
}

// NewRouter creates a router for the given custom scheme (without "://")
// and universal-link host.
func NewRouter(scheme, universalHost string) (*Router, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	universalHost = strings.ToLower(strings.TrimSpace(universalHost))
	if scheme == "" {
		return nil, fmt.Errorf("custom scheme is required")
	}
	if universalHost == "" {
		return nil, fmt.Errorf("universal link host is required")
	}
	return &Router{scheme: scheme, universalHost: universalHost, now: time.Now}, nil
}

// Parse normalizes an inbound URI into a ParsedDeepLink. Accepted shapes:
//
//	{scheme}://{bet|community}/{id}
//	https://{host}/{bet|community}/{id}
//
// The id is opaque; no validation beyond non-emptiness.
func (r *Router) Parse(rawURI string) (*ParsedDeepLink, error) {
	u, err := url.Parse(strings.TrimSpace(rawURI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}

	var segments []string
	switch strings.ToLower(u.Scheme) {
	case r.scheme:
		// Custom scheme: the host is the first path segment.
		segments = append([]string{u.Host}, splitPath(u.Path)...)
	case "https", "http":
		if !strings.EqualFold(u.Host, r.universalHost) {
			return nil, fmt.Errorf("%w: unexpected host %q", ErrMalformedLink, u.Host)
		}
		segments = splitPath(u.Path)
	default:
		return nil, fmt.Errorf("%w: unexpected scheme %q", ErrMalformedLink, u.Scheme)
	}

	segments = dropEmpty(segments)
	if len(segments) < 2 {
		return nil, fmt.Errorf("%w: need entity type and id", ErrMalformedLink)
	}

	entityType := strings.ToLower(segments[0])
	switch entityType {
	case EntityTypeBet, EntityTypeCommunity:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLinkType, segments[0])
	}

	return &ParsedDeepLink{
		EntityType: entityType,
		EntityID:   segments[1],
		ReceivedAt: r.now(),
	}, nil
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func dropEmpty(segments []string) []string {
	out := segments[:0]
	for _, s := range segments {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
