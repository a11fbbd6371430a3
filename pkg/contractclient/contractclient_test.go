package contractclient

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func TestDecodeTransaction(t *testing.T) {
	if err := godotenv.Load("env/.env.test.local"); err != nil {
		t.Skipf("no env/.env.test.local, skipping live decode test: %v", err)
	}

	contractAddr := os.Getenv("ROUTER_ADDR")
	rpcURL := os.Getenv("RPC_URL")
	txHash := os.Getenv("TX_HASH")
	txData := os.Getenv("TX_DATA")
	abiPath := os.Getenv("ABI_PATH")
	if contractAddr == "" || rpcURL == "" || abiPath == "" || (txHash == "" && txData == "") {
		t.Skip("incomplete env/.env.test.local, skipping")
	}

	contractABI, err := LoadABI(abiPath)
	require.NoError(t, err)

	client, err := ethclient.Dial(rpcURL)
	require.NoError(t, err)

	cc := NewContractClient(client, common.HexToAddress(contractAddr), contractABI)

	t.Run("decode_router_calldata", func(t *testing.T) {
		var raw []byte
		if txData != "" {
			raw, err = HexToBytes(txData)
			require.NoError(t, err)
		} else {
			raw, err = cc.TransactionData(t.Context(), common.HexToHash(txHash))
			require.NoError(t, err)
		}

		decoded, err := cc.DecodeTransaction(raw)
		require.NoError(t, err)

		jsonData, err := json.MarshalIndent(decoded, "", "  ")
		require.NoError(t, err)
		t.Logf("decoded router call:\n%s", string(jsonData))
	})
}

func TestHexToBytes(t *testing.T) {
	b, err := HexToBytes("0xa9059cbb")
	require.NoError(t, err)
	require.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, b)

	b2, err := HexToBytes("a9059cbb")
	require.NoError(t, err)
	require.Equal(t, b, b2)
}

func TestLoadABI_bareArray(t *testing.T) {
	const sample = `[{"type":"function","name":"swapExactTokensForTokens","inputs":[
		{"name":"amountIn","type":"uint256"},
		{"name":"amountOutMin","type":"uint256"},
		{"name":"path","type":"address[]"},
		{"name":"to","type":"address"},
		{"name":"deadline","type":"uint256"}
	],"outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable"}]`

	dir := t.TempDir()
	path := fmt.Sprintf("%s/router.json", dir)
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	parsed, err := LoadABI(path)
	require.NoError(t, err)
	_, ok := parsed.Methods["swapExactTokensForTokens"]
	require.True(t, ok)
}

func TestLoadABI_hardhatArtifact(t *testing.T) {
	const sample = `{"contractName":"Router","abi":[{"type":"function","name":"factory","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}],"bytecode":"0x"}`

	dir := t.TempDir()
	path := fmt.Sprintf("%s/artifact.json", dir)
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	parsed, err := LoadABI(path)
	require.NoError(t, err)
	_, ok := parsed.Methods["factory"]
	require.True(t, ok)
}
