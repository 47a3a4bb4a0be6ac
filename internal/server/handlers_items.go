package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"keystore-core/internal/vault"
)

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	v, err := s.withSessionVault(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		typ := r.URL.Query().Get("type")
		q := vault.Query{Type: typ}

		metas, err := v.List(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		out := make([]map[string]any, 0, len(metas))
		for _, m := range metas {
			it, err := v.GetItem(r.Context(), m.ID)
			if err != nil {
				continue
			}
			out = append(out, map[string]any{
				"id":      m.ID,
				"type":    canonType(m.Type),
				"created": m.Created,
				"updated": m.Updated,
				"version": m.Version,
				"fields":  summarizeItemFields(m.Type, it.Fields),
			})
		}
		writeJSON(w, out)

	case http.MethodPost:
		var it vault.Item
		if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(it.Type) == "" {
			http.Error(w, "type required", http.StatusBadRequest)
			return
		}
		if len(it.Fields) == 0 {
			http.Error(w, "fields required", http.StatusBadRequest)
			return
		}
		id, err := v.AddItem(r.Context(), it)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"id": id})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleItemByID(w http.ResponseWriter, r *http.Request) {
	v, err := s.withSessionVault(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/items/")
	if id == "" || id == "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		it, err := v.GetItem(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, it)

	case http.MethodPut:
		var patch vault.Item
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := v.UpdateItem(r.Context(), id, patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"updated": true})

	case http.MethodDelete:
		if err := v.DeleteItem(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// summarizeItemFields masks fields that a listing view should never echo in
// full: API keys and other secrets get reduced to a trailing suffix so the
// owner can recognize the item without the whole value hitting the wire.
func summarizeItemFields(itemType string, fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, sensitive := range []string{"apikey", "api_key", "secret", "seed"} {
		if v, ok := out[sensitive]; ok && v != "" {
			out[sensitive] = "…" + last4(v)
		}
	}
	if _, ok := out["label"]; !ok {
		if title, ok2 := out["title"]; ok2 && title != "" {
			out["label"] = title
		} else {
			out["label"] = "(untitled " + canonType(itemType) + ")"
		}
	}
	return out
}

func last4(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

func canonType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "exchange key", "exchange-key", "api key":
		return "exchange-key"
	case "address label", "address-label":
		return "address"
	default:
		return t
	}
}
