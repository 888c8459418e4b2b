package domain

import (
	"fmt"
	"strings"
	"time"
)

type WalletKind string

const (
	WalletArgentX WalletKind = "argentx"
	WalletBraavos WalletKind = "braavos"
	WalletReady   WalletKind = "ready"
	WalletKeplr   WalletKind = "keplr"
	WalletGeneric WalletKind = "generic"
)

var walletKinds = []WalletKind{WalletArgentX, WalletBraavos, WalletReady, WalletKeplr, WalletGeneric}

func WalletKinds() []WalletKind {
	out := make([]WalletKind, len(walletKinds))
	copy(out, walletKinds)
	return out
}

func ParseWalletKind(raw string) (WalletKind, error) {
	normalized := WalletKind(strings.ToLower(strings.TrimSpace(raw)))
	switch normalized {
	case "argent", "argent-x":
		return WalletArgentX, nil
	case "readywallet", "ready-wallet":
		return WalletReady, nil
	}
	for _, kind := range walletKinds {
		if kind == normalized {
			return kind, nil
		}
	}

	return "", fmt.Errorf("unknown wallet kind %q", raw)
}

func (k WalletKind) DisplayName() string {
	switch k {
	case WalletArgentX:
		return "Argent X"
	case WalletBraavos:
		return "Braavos"
	case WalletReady:
		return "Ready Wallet"
	case WalletKeplr:
		return "Keplr"
	default:
		return "Starknet wallet"
	}
}

type ConnectMethod string

const (
	ConnectWalletConnect ConnectMethod = "walletconnect"
	ConnectDeepLink      ConnectMethod = "deeplink"
	ConnectManualImport  ConnectMethod = "manual"
)

func ParseConnectMethod(raw string) (ConnectMethod, error) {
	switch ConnectMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case ConnectWalletConnect, "wc":
		return ConnectWalletConnect, nil
	case ConnectDeepLink:
		return ConnectDeepLink, nil
	case ConnectManualImport, "import":
		return ConnectManualImport, nil
	default:
		return "", fmt.Errorf("unknown connect method %q", raw)
	}
}

// ConnectRequest is what an adapter needs to start a connection attempt.
type ConnectRequest struct {
	Kind        WalletKind
	Method      ConnectMethod
	ExpiresAt   time.Time
	CallbackURL string
}

// PendingConnection is returned by an adapter once the wallet has been handed
// a request. URI and DeepLink are what the caller shows or opens.
type PendingConnection struct {
	Kind        WalletKind
	Method      ConnectMethod
	Correlation string
	URI         string
	DeepLink    string
	ExpiresAt   time.Time
	CanSign     bool
}

// ImportedAccount is key material supplied by the user.
type ImportedAccount struct {
	PrivateKey string
	Address    string
	PublicKey  string
}

// ConnectedAccount is what a successful callback or settle event reports.
type ConnectedAccount struct {
	Address   string
	PublicKey string
	Name      string
	PeerTopic string
	CanSign   bool
}

// PrivateKeySecretRef is the SecretStore key holding an imported signing key.
func PrivateKeySecretRef(kind WalletKind) string {
	return "wallet/" + string(kind) + "/private-key"
}

// SessionKeySecretRef is the SecretStore key holding a WalletConnect session
// symmetric key.
func SessionKeySecretRef(kind WalletKind) string {
	return "wallet/" + string(kind) + "/wc-session-key"
}
