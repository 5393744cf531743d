// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/bureau-ci/lib/codec"
	"github.com/bureau-foundation/bureau-ci/lib/ledger"
)

// apiError is the body of API error responses.
type apiError struct {
	Error string `json:"error"`
}

// handleAPIList serves every build in ledger order.
func (s *Server) handleAPIList(writer http.ResponseWriter, request *http.Request) {
	records := s.ledger.List()
	if records == nil {
		records = []ledger.Record{}
	}
	s.writeAPI(writer, request, http.StatusOK, records)
}

// handleAPIBuild serves one build by id.
func (s *Server) handleAPIBuild(writer http.ResponseWriter, request *http.Request) {
	id := mux.Vars(request)["id"]
	record, found := s.ledger.Get(id)
	if !found {
		s.writeAPI(writer, request, http.StatusNotFound, apiError{Error: "build not found: " + id})
		return
	}
	s.writeAPI(writer, request, http.StatusOK, record)
}

// writeAPI encodes value as CBOR when the client prefers it and JSON
// otherwise. Successful responses carry a strong ETag over the encoded
// bytes, so an unchanged ledger answers If-None-Match with 304.
func (s *Server) writeAPI(writer http.ResponseWriter, request *http.Request, status int, value any) {
	var (
		body        []byte
		contentType string
		err         error
	)
	if codec.Accepts(request.Header.Get("Accept")) {
		body, err = codec.Marshal(value)
		contentType = codec.MediaType
	} else {
		body, err = json.Marshal(value)
		contentType = "application/json"
	}
	if err != nil {
		s.logger.Error("encoding API response failed", "path", request.URL.Path, "error", err)
		http.Error(writer, "encoding response", http.StatusInternalServerError)
		return
	}

	header := writer.Header()
	header.Set("Vary", "Accept")
	if status == http.StatusOK {
		tag := entityTag(body)
		header.Set("ETag", tag)
		header.Set("Cache-Control", "no-cache")
		if matchesETag(request.Header.Get("If-None-Match"), tag) {
			writer.WriteHeader(http.StatusNotModified)
			return
		}
	}
	header.Set("Content-Type", contentType)
	writer.WriteHeader(status)
	if request.Method != http.MethodHead {
		writer.Write(body)
	}
}

// entityTag is a quoted 128-bit BLAKE3 prefix of body.
func entityTag(body []byte) string {
	sum := blake3.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// matchesETag reports whether an If-None-Match header covers tag. Weak
// validators match by their opaque part, as RFC 9110 requires for
// If-None-Match.
func matchesETag(ifNoneMatch, tag string) bool {
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}
