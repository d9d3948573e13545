package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// queryDate parses an optional YYYY-MM-DD query parameter
func queryDate(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := contracts.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid '%s' date format (expected YYYY-MM-DD)", key)
	}
	return t, nil
}

// queryBool parses an optional boolean query parameter
func queryBool(r *http.Request, key string, def bool) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid '%s' value (expected true or false)", key)
	}
	return b, nil
}

// queryList splits a comma-separated query parameter
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, p := range strings.Split(r.URL.Query().Get(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
