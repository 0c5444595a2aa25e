package gateway

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/fjod/storefront/internal/signature"
	"github.com/google/uuid"
)

const (
	authScheme   = "IYZWSv2"
	headerRandom = "x-iyzi-rnd"
)

func (c *Client) authorize(req *http.Request, creds Credentials, path string, body []byte) {
	rnd := c.randomKey()
	req.Header.Set(headerRandom, rnd)
	req.Header.Set("Authorization", authorizationHeader(creds, rnd, path, body))
}

func (c *Client) randomKey() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10) + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// authorizationHeader signs rnd+path+body; the query string is not part of the signed path.
func authorizationHeader(creds Credentials, rnd, path string, body []byte) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	sig := signature.HMACHex(creds.SecretKey, rnd+path+string(body))
	params := "apiKey:" + creds.APIKey + "&randomKey:" + rnd + "&signature:" + sig
	return authScheme + " " + base64.StdEncoding.EncodeToString([]byte(params))
}
