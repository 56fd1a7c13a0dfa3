package api

import (
	"encoding/json"
	"io"
)

func encode(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}
