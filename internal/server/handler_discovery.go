package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "branchq API",
		Version:     "v1",
		Description: "Branch queue management: visit lifecycle, dispatch and segmentation",
		Endpoints: []endpointInfo{
			{"/api/v1/branches", []string{"GET"}, "List registered branches"},
			{"/api/v1/branches/{id}", []string{"GET"}, "Branch topology and live state"},
			{"/api/v1/branches/{id}/visits", []string{"POST"}, "Create a visit (entry point)"},
			{"/api/v1/branches/{id}/visits/{vid}", []string{"GET", "DELETE"}, "Single visit detail, removal"},
			{"/api/v1/branches/{id}/visits/{vid}/events", []string{"GET"}, "Visit lifecycle history from the journal"},
			{"/api/v1/branches/{id}/visits/{vid}/transfer/queue", []string{"POST"}, "Transfer a visit to a queue"},
			{"/api/v1/branches/{id}/queues", []string{"GET"}, "List queues with waiting visits"},
			{"/api/v1/branches/{id}/service-points/{spid}/open", []string{"POST"}, "Log a staff member in"},
			{"/api/v1/branches/{id}/service-points/{spid}/call-next", []string{"POST"}, "Call the next visit by the dispatch rule"},
			{"/api/v1/branches/{id}/service-points/{spid}/stop-serving", []string{"POST"}, "Finish the current service delivery"},
			{"/api/v1/sse/branches/{id}/queues/{qid}", []string{"GET"}, "Queue contents as a live event stream"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
