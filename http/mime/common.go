package mime

import (
	"strings"

	"github.com/indigo-web/utils/strcomp"
)

type MIME = string

const (
	OctetStream    MIME = "application/octet-stream"
	Plain          MIME = "text/plain"
	HTML           MIME = "text/html"
	JSON           MIME = "application/json"
	FormUrlencoded MIME = "application/x-www-form-urlencoded"
	Multipart      MIME = "multipart/form-data"
	PNG            MIME = "image/png"
	JPEG           MIME = "image/jpeg"
)

// CutParams splits a header value into the media type and its parameters.
func CutParams(value string) (mime MIME, params string) {
	semicolon := strings.IndexByte(value, ';')
	if semicolon == -1 {
		return strings.TrimSpace(value), ""
	}

	return strings.TrimSpace(value[:semicolon]), value[semicolon+1:]
}

// Param returns the value of a parameter of a header value (e.g. boundary of
// multipart/form-data). Parameter names are case-insensitive, quoted values are unquoted.
func Param(value, name string) (param string, found bool) {
	_, params := CutParams(value)

	for len(params) > 0 {
		var pair string
		semicolon := strings.IndexByte(params, ';')
		if semicolon == -1 {
			pair, params = params, ""
		} else {
			pair, params = params[:semicolon], params[semicolon+1:]
		}

		eq := strings.IndexByte(pair, '=')
		if eq == -1 {
			continue
		}

		if !strcomp.EqualFold(strings.TrimSpace(pair[:eq]), name) {
			continue
		}

		param = strings.TrimSpace(pair[eq+1:])
		if len(param) >= 2 && param[0] == '"' && param[len(param)-1] == '"' {
			param = param[1 : len(param)-1]
		}

		return param, true
	}

	return "", false
}
