package handlers

import (
	"bytes"
	"encoding/xml"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeXML  = "application/xml; charset=utf-8"
)

// negotiateFormat picks XML or JSON from the Accept header, defaulting to JSON
func negotiateFormat(c *gin.Context) string {
	switch c.NegotiateFormat(binding.MIMEJSON, binding.MIMEXML, binding.MIMEXML2) {
	case binding.MIMEXML, binding.MIMEXML2:
		return binding.MIMEXML
	}
	return binding.MIMEJSON
}

func negotiatedContentType(c *gin.Context) string {
	if negotiateFormat(c) == binding.MIMEXML {
		return contentTypeXML
	}
	return contentTypeJSON
}

// respond writes data in the negotiated representation. xmlData is used for
// XML when the JSON shape has no natural XML form.
func respond(c *gin.Context, status int, data, xmlData interface{}) {
	if negotiateFormat(c) == binding.MIMEXML {
		if xmlData == nil {
			xmlData = data
		}
		c.XML(status, xmlData)
		return
	}
	c.JSON(status, data)
}

func respondError(c *gin.Context, status int, message string, errs interface{}) {
	c.JSON(status, APIResponse{
		Success: false,
		Message: message,
		Errors:  errs,
	})
}

// bindBody decodes the request body according to Content-Type. It reports
// false when the body is missing, null or cannot be decoded.
func bindBody(c *gin.Context, obj interface{}) bool {
	data, err := c.GetRawData()
	if err != nil {
		return false
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}

	var b binding.BindingBody = binding.JSON
	switch c.ContentType() {
	case binding.MIMEXML, binding.MIMEXML2:
		b = binding.XML
	}

	return b.BindBody(trimmed, obj) == nil
}

// absoluteURL resolves path against the scheme and host of the request
func absoluteURL(c *gin.Context, path string, query url.Values) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	u := url.URL{
		Scheme: scheme,
		Host:   c.Request.Host,
		Path:   path,
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// createdID is the XML form of an identifier body
type createdID struct {
	XMLName xml.Name `xml:"guid"`
	Value   string   `xml:",chardata"`
}
