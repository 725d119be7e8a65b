// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

/*
Package validation provides struct validation using go-playground/validator v10.

A single validator instance is shared process-wide; it caches struct
metadata, so reuse matters. Errors name fields by their JSON tag and are
converted to the API's VALIDATION_ERROR shape by ToAPIError.

Custom tags:

  - role: admin or user
  - notblank: not empty after trimming whitespace

Example:

	type RegisterRequest struct {
	    Email    string `json:"email" validate:"required,email,max=254"`
	    Password string `json:"password" validate:"required,min=6,max=72"`
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
	    apiErr := verr.ToAPIError()
	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
	    return
	}
*/
package validation
