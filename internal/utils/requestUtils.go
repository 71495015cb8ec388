package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"studynotes/internal/apperr"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a JSON body of at most 1MB into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body is required")
		}
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// ParseObjectID turns a hex id into an ObjectID, reporting a validation error
// that names the field.
func ParseObjectID(idStr, field string) (primitive.ObjectID, error) {
	if idStr == "" {
		return primitive.NilObjectID, apperr.Validation("Missing " + field)
	}
	objID, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("Invalid " + field + " format")
	}
	return objID, nil
}

// GetObjectIDFromVars extracts and parses an ObjectID from mux.Vars.
func GetObjectIDFromVars(r *http.Request, paramName string) (primitive.ObjectID, error) {
	return ParseObjectID(mux.Vars(r)[paramName], paramName)
}
