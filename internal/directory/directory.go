package directory

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cacheKey = "therapists"

// Therapist is one referral entry from the directory file.
type Therapist struct {
	Name      string   `json:"name"`
	Specialty string   `json:"specialty,omitempty"`
	Location  string   `json:"location,omitempty"`
	Contact   string   `json:"contact,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// Service serves the therapist referral directory from a JSON file,
// cached so the file is not re-read on every request.
type Service struct {
	path  string
	cache *gocache.Cache
}

func NewService(path string) *Service {
	return &Service{
		path:  path,
		cache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Therapists returns the directory entries, reading the file at most once
// per cache window.
func (s *Service) Therapists() ([]Therapist, error) {
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.([]Therapist), nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read therapist directory: %w", err)
	}
	var list []Therapist
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode therapist directory: %w", err)
	}

	s.cache.Set(cacheKey, list, gocache.DefaultExpiration)
	return list, nil
}
