package identity

import "strings"

// pdsServiceID is the fragment of the service entry naming the PDS.
const pdsServiceID = "#atproto_pds"

// pdsServiceType is the service type of a PDS entry.
const pdsServiceType = "AtprotoPersonalDataServer"

// Document is the subset of a DID document consumed here.
type Document struct {
	ID          string       `json:"id"`
	AlsoKnownAs []string     `json:"alsoKnownAs,omitempty"`
	Service     []DocService `json:"service,omitempty"`
}

// DocService is a service entry of a DID document.
type DocService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// PDSEndpoint returns the endpoint of the "#atproto_pds" service, or false
// when the document declares none.
func (d *Document) PDSEndpoint() (string, bool) {
	for _, svc := range d.Service {
		if !strings.HasSuffix(svc.ID, pdsServiceID) {
			continue
		}
		if svc.Type != "" && svc.Type != pdsServiceType {
			continue
		}
		endpoint := strings.TrimRight(svc.ServiceEndpoint, "/")
		if endpoint == "" {
			continue
		}
		return endpoint, true
	}
	return "", false
}

// DeclaredHandle returns the first "at://" alias of the document.
func (d *Document) DeclaredHandle() (string, bool) {
	for _, aka := range d.AlsoKnownAs {
		if h, ok := strings.CutPrefix(aka, "at://"); ok && h != "" {
			return strings.ToLower(h), true
		}
	}
	return "", false
}
