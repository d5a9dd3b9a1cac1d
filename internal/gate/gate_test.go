package gate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Unix(1_700_000_000, 0) }

func TestIssueMatchesContract(t *testing.T) {
	iss := Issuer{Secret: []byte("change-me"), Now: fixedNow}
	tok := iss.Issue("abc")
	assert.Equal(t, int64(1_700_000_060), tok.Exp)

	m := hmac.New(sha256.New, []byte("change-me"))
	m.Write([]byte("abc:1700000060"))
	assert.Equal(t, m.Sum(nil)[0], tok.G)
}

func TestTokenJSONShape(t *testing.T) {
	b, err := json.Marshal(Token{G: 200, Exp: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"g":200,"exp":5}`, string(b))
}

func TestRedeem(t *testing.T) {
	iss := Issuer{Secret: []byte("s"), Now: fixedNow}
	tok := iss.Issue("id")
	again, err := iss.Redeem("id", tok.Exp)
	require.NoError(t, err)
	assert.Equal(t, tok, again)

	_, err = iss.Redeem("id", fixedNow().Unix())
	assert.ErrorIs(t, err, ErrExpired)

	_, err = iss.Redeem("id", tok.Exp+1)
	assert.ErrorIs(t, err, ErrNotIssued)
}

func TestWithQuery(t *testing.T) {
	u, err := WithQuery("https://example.com/key?id=old", "new id", 42)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/key?exp=42&id=new+id", u)
	assert.Equal(t, "old", IDFromURL("https://example.com/key?id=old"))

	_, err = WithQuery("ftp://example.com/key", "x", 0)
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	iss := Issuer{Secret: []byte("s"), Now: fixedNow}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(iss.Issue(r.URL.Query().Get("id")))
	}))
	defer srv.Close()

	tok, err := HTTPSource{URL: srv.URL + "/key"}.Token(context.Background(), "wm")
	require.NoError(t, err)
	assert.Equal(t, iss.Issue("wm"), tok)
}
