package signing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "test-hash-secret"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{
			name:   "empty map",
			params: map[string]string{},
			want:   "",
		},
		{
			name:   "drops empty values",
			params: map[string]string{"a": "1", "b": "", "c": "3"},
			want:   "a=1&c=3",
		},
		{
			name:   "byte-wise key order puts uppercase first",
			params: map[string]string{"b": "2", "B": "3", "a": "1", "_z": "4"},
			want:   "B=3&_z=4&a=1&b=2",
		},
		{
			name:   "space is percent encoded, not plus",
			params: map[string]string{"vnp_OrderInfo": "pay invoice 12"},
			want:   "vnp_OrderInfo=pay%20invoice%2012",
		},
		{
			name:   "utf-8 and reserved characters",
			params: map[string]string{"info": "Thanh toán", "url": "https://x.vn/r?a=1&b=2"},
			want:   "info=Thanh%20to%C3%A1n&url=https%3A%2F%2Fx.vn%2Fr%3Fa%3D1%26b%3D2",
		},
		{
			name:   "unreserved characters pass through",
			params: map[string]string{"k": "AZaz09-._~"},
			want:   "k=AZaz09-._~",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Canonicalize(tc.params))
		})
	}
}

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	got := Sign("Jefe", "what do ya want for nothing?")
	assert.Equal(t,
		"164b7a7bfcf819e2e395fbe73b56e0a387bd64222e831fd610270cd7ea2505549758bf75c05a994a6d034f65f8f0e6fdcaeab1a34d4a6b4b636e070a38bce737",
		got,
	)
}

func TestSignFields(t *testing.T) {
	assert.Equal(t, Sign(testSecret, "a|b||c"), SignFields(testSecret, "a", "b", "", "c"))
}

func sampleParams() map[string]string {
	return map[string]string{
		"vnp_Amount":     "15000000",
		"vnp_Command":    "pay",
		"vnp_CreateDate": "20240101123456",
		"vnp_OrderInfo":  "Thanh toan PAY24010100000042",
		"vnp_TmnCode":    "DEMO0001",
		"vnp_TxnRef":     "24010100000042",
		"vnp_Version":    "2.1.0",
		"vnp_BankCode":   "",
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	params := sampleParams()
	hash := Sign(testSecret, Canonicalize(params))

	assert.True(t, Verify(testSecret, params, hash))
	assert.True(t, Verify(testSecret, params, strings.ToUpper(hash)), "hex case is ignored")

	withHash := sampleParams()
	withHash["vnp_SecureHash"] = hash
	withHash["vnp_SecureHashType"] = "HmacSHA512"
	assert.True(t, Verify(testSecret, withHash, hash), "hash fields are excluded")
}

func TestVerify_TamperedValueFails(t *testing.T) {
	params := sampleParams()
	hash := Sign(testSecret, Canonicalize(params))

	for k := range params {
		if params[k] == "" {
			continue
		}
		t.Run(k, func(t *testing.T) {
			tampered := sampleParams()
			tampered[k] = tampered[k] + "1"
			assert.False(t, Verify(testSecret, tampered, hash))
		})
	}
}

func TestVerify_Rejects(t *testing.T) {
	params := sampleParams()
	hash := Sign(testSecret, Canonicalize(params))

	tests := []struct {
		name     string
		secret   string
		provided string
	}{
		{name: "wrong secret", secret: "other-secret", provided: hash},
		{name: "empty hash", secret: testSecret, provided: ""},
		{name: "not hex", secret: testSecret, provided: "zz" + hash[2:]},
		{name: "truncated", secret: testSecret, provided: hash[:64]},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, Verify(tc.secret, params, tc.provided))
		})
	}
}

func TestPercentEncode(t *testing.T) {
	assert.Equal(t, "a%2Bb%20c", PercentEncode("a+b c"))
	assert.Equal(t, "%E2%82%AC", PercentEncode("€"))
}
