package verify

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/lottoctl/internal/artifacts"
)

var lotteryAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func testRequest() *Request {
	return &Request{
		Address:         lotteryAddr,
		ContractName:    "contracts/Lottery.sol:Lottery",
		CompilerVersion: "v0.8.7+commit.e28d00a7",
		SourceCode:      `{"language":"Solidity","sources":{}}`,
		ConstructorArgs: "00",
	}
}

func writeJSON(w http.ResponseWriter, status, message, result string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status, "message": message, "result": result})
}

func newTestClient(url string) *Client {
	return NewClient("test-key", 11155111,
		WithBaseURL(url),
		WithPollInterval(time.Millisecond),
		WithMaxAttempts(5),
	)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("k", 1)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, DefaultPollInterval, c.pollInterval)
	assert.Equal(t, DefaultMaxAttempts, c.maxAttempts)

	c = NewClient("k", 1, WithBaseURL(""), WithTimeout(time.Second))
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}

func TestClient_VerifySource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "11155111", r.URL.Query().Get("chainid"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "contract", r.PostForm.Get("module"))
		assert.Equal(t, "verifysourcecode", r.PostForm.Get("action"))
		assert.Equal(t, "test-key", r.PostForm.Get("apikey"))
		assert.Equal(t, lotteryAddr.Hex(), r.PostForm.Get("contractaddress"))
		assert.Equal(t, "solidity-standard-json-input", r.PostForm.Get("codeformat"))
		assert.Equal(t, "contracts/Lottery.sol:Lottery", r.PostForm.Get("contractname"))
		assert.Equal(t, "v0.8.7+commit.e28d00a7", r.PostForm.Get("compilerversion"))
		assert.Equal(t, "00", r.PostForm.Get("constructorArguements"))
		writeJSON(w, "1", "OK", "guid-123")
	}))
	defer server.Close()

	guid, err := newTestClient(server.URL).VerifySource(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "guid-123", guid)
}

func TestClient_VerifySourceInvalidRequest(t *testing.T) {
	_, err := NewClient("k", 1).VerifySource(context.Background(), &Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address is required")
	assert.Contains(t, err.Error(), "source code is required")
}

func TestClient_VerifySourceAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, "0", "NOTOK", "Invalid API Key")
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).VerifySource(context.Background(), testRequest())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid API Key", apiErr.Result)
	assert.Equal(t, "NOTOK: Invalid API Key", apiErr.Error())
}

func TestClient_VerifySourceNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).VerifySource(context.Background(), testRequest())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestClient_CheckStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		result     string
		wantStatus Status
		wantErr    bool
	}{
		{name: "pending", status: "0", result: "Pending in queue", wantStatus: StatusPending},
		{name: "pass", status: "1", result: "Pass - Verified", wantStatus: StatusPass},
		{name: "fail", status: "0", result: "Fail - Unable to verify", wantStatus: StatusFail},
		{name: "already verified", status: "0", result: "Already Verified", wantStatus: StatusAlreadyVerified},
		{name: "error", status: "0", result: "Invalid API Key", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "checkverifystatus", r.URL.Query().Get("action"))
				assert.Equal(t, "guid-123", r.URL.Query().Get("guid"))
				writeJSON(w, tc.status, "msg", tc.result)
			}))
			defer server.Close()

			status, message, err := newTestClient(server.URL).CheckStatus(context.Background(), "guid-123")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.result, message)
		})
	}
}

// explorer answers verifysourcecode with submit and then walks through statuses.
func explorer(t *testing.T, submit [2]string, statuses ...string) (*httptest.Server, *int32) {
	t.Helper()
	var checks int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJSON(w, submit[0], "OK", submit[1])
			return
		}
		i := int(atomic.AddInt32(&checks, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		status := "0"
		if strings.HasPrefix(statuses[i], "Pass") {
			status = "1"
		}
		writeJSON(w, status, "OK", statuses[i])
	}))
	t.Cleanup(server.Close)
	return server, &checks
}

func TestClient_VerifyPolls(t *testing.T) {
	server, checks := explorer(t, [2]string{"1", "guid-1"}, "Pending in queue", "Pending in queue", "Pass - Verified")

	result, err := newTestClient(server.URL).Verify(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "guid-1", result.GUID)
	assert.Equal(t, int32(3), atomic.LoadInt32(checks))
}

func TestClient_VerifyAlreadyVerified(t *testing.T) {
	server, checks := explorer(t, [2]string{"0", "Contract source code already verified"}, "unused")

	result, err := newTestClient(server.URL).Verify(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyVerified, result.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(checks))
}

func TestClient_VerifyFails(t *testing.T) {
	server, _ := explorer(t, [2]string{"1", "guid-1"}, "Fail - Unable to verify")

	result, err := newTestClient(server.URL).Verify(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrVerificationFailed)
	require.NotNil(t, result)
	assert.Equal(t, StatusFail, result.Status)
}

func TestClient_VerifyBoundedAttempts(t *testing.T) {
	server, checks := explorer(t, [2]string{"1", "guid-1"}, "Pending in queue")

	_, err := newTestClient(server.URL).Verify(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrPending)
	assert.Equal(t, int32(5), atomic.LoadInt32(checks))
}

func TestEncodeConstructorArgs(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(`[{"type":"constructor","inputs":[{"name":"fee","type":"uint256"}]}]`))
	require.NoError(t, err)

	encoded, err := EncodeConstructorArgs(parsed, big.NewInt(255))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 62)+"ff", encoded)

	_, err = EncodeConstructorArgs(parsed, "wrong")
	assert.Error(t, err)
}

func TestNewRequest(t *testing.T) {
	dir := t.TempDir()
	write := func(path, content string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	artifactPath := filepath.Join(dir, "contracts", "Lottery.sol", "Lottery.json")
	write(artifactPath, `{"contractName":"Lottery","sourceName":"contracts/Lottery.sol","abi":[],"bytecode":"0x00"}`)
	write(filepath.Join(dir, "contracts", "Lottery.sol", "Lottery.dbg.json"), `{"buildInfo":"../../build-info/b1.json"}`)
	write(filepath.Join(dir, "build-info", "b1.json"), `{"id":"b1","solcLongVersion":"0.8.7+commit.e28d00a7","input":{"language":"Solidity"}}`)

	art, err := artifacts.LoadFile(artifactPath)
	require.NoError(t, err)

	req, err := NewRequest(art, lotteryAddr, "0xabcd")
	require.NoError(t, err)
	assert.Equal(t, "contracts/Lottery.sol:Lottery", req.ContractName)
	assert.Equal(t, "v0.8.7+commit.e28d00a7", req.CompilerVersion)
	assert.JSONEq(t, `{"language":"Solidity"}`, req.SourceCode)
	assert.Equal(t, "abcd", req.ConstructorArgs)
	assert.NoError(t, req.validate())
}
