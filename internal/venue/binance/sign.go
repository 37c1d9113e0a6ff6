package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"
)

// signParams appends a millisecond timestamp and an HMAC-SHA256
// signature to params, computed over the urlencoded query that
// includes the timestamp. The signature itself must be the final
// query field and must not be re-urlencoded after computation — both
// are Binance signed-endpoint requirements (spec.md §6, §8 Binance
// signer round-trip property).
func signParams(params url.Values, apiSecret string) (query string) {
	signed := url.Values{}
	for k, v := range params {
		signed[k] = v
	}
	signed.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	base := signed.Encode()
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(base))
	signature := hex.EncodeToString(mac.Sum(nil))

	return base + "&signature=" + signature
}
