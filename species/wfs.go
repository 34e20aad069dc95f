package species

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/StalkR/hsts"
)

// Here's a secure HTTP client for talking to the taxonomy service. It sets
// a reasonable timeout and enables HTTP Strict Transport Security (HSTS).
func secureHttpClient(timeout time.Duration) http.Client {
	client := http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Scheme == "http" {
				return &DowngradedRedirectError{
					Endpoint: fmt.Sprintf("%s%s", req.URL.Host, req.URL.Path),
				}
			}
			return http.ErrUseLastResponse
		},
	}
	client.Transport = hsts.New(client.Transport) // enable HSTS
	return client
}

// the WFS feature collection shape returned by the taxonomy service: all
// species information sits in each feature's properties field
type featureCollection struct {
	Features []struct {
		Properties struct {
			SpeciesName string `json:"species_name"`
			NameId      int    `json:"name_id"`
		} `json:"properties"`
	} `json:"features"`
}

// a NameService backed by a WFS-style species feature service
type WFSService struct {
	// base URL of the service's GetFeature endpoint
	URL string
	// HTTP client used for requests
	Client http.Client
}

// creates a WFS-backed name service for the given base URL
func NewWFSService(baseURL string, timeout time.Duration) *WFSService {
	return &WFSService{
		URL:    baseURL,
		Client: secureHttpClient(timeout),
	}
}

// fetches all species names known to the service
func (s *WFSService) Names() ([]string, error) {
	collection, err := s.fetchFeatures(url.Values{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(collection.Features))
	for _, feature := range collection.Features {
		names = append(names, feature.Properties.SpeciesName)
	}
	return names, nil
}

// returns true if the service knows the given species name
func (s *WFSService) HasName(name string) (bool, error) {
	params := url.Values{}
	params.Set("CQL_FILTER", fmt.Sprintf("species_name='%s'", name))
	collection, err := s.fetchFeatures(params)
	if err != nil {
		return false, err
	}
	return len(collection.Features) > 0, nil
}

func (s *WFSService) fetchFeatures(params url.Values) (*featureCollection, error) {
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", "GetFeature")
	params.Set("outputFormat", "application/json")

	requestURL := fmt.Sprintf("%s?%s", s.URL, params.Encode())
	response, err := s.Client.Get(requestURL)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, &UnavailableError{Status: response.StatusCode}
	}
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	var collection featureCollection
	if err := json.Unmarshal(body, &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}
