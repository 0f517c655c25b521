package vault

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const defaultServiceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// Client reads the service's credentials from a Vault KV v2 secret after
// logging in with the pod's Kubernetes service account.
type Client struct {
	http         *resty.Client
	kvSecretPath string
	role         string
	tokenPath    string
	token        string
}

type loginResponse struct {
	Auth *struct {
		ClientToken string `json:"client_token"`
	} `json:"auth"`
	Errors []string `json:"errors"`
}

type kvResponse struct {
	Data *struct {
		Data map[string]interface{} `json:"data"`
	} `json:"data"`
	Errors []string `json:"errors"`
}

// New logs in to Vault at addr. tokenPath defaults to the in-cluster
// service account token.
func New(ctx context.Context, addr, kvSecretPath, role, tokenPath string) (*Client, error) {
	if tokenPath == "" {
		tokenPath = defaultServiceAccountTokenPath
	}
	vc := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(addr, "/")).
			SetTimeout(10 * time.Second),
		kvSecretPath: strings.Trim(kvSecretPath, "/"),
		role:         role,
		tokenPath:    tokenPath,
	}

	token, err := vc.login(ctx)
	if err != nil {
		return nil, err
	}
	vc.token = token
	return vc, nil
}

func (vc *Client) login(ctx context.Context) (string, error) {
	k8sToken, err := os.ReadFile(vc.tokenPath)
	if err != nil {
		return "", errors.Wrap(err, "read service account token")
	}

	var result loginResponse
	resp, err := vc.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"jwt":  strings.TrimSpace(string(k8sToken)),
			"role": vc.role,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/v1/auth/kubernetes/login")
	if err != nil {
		return "", errors.Wrap(err, "vault login")
	}
	if resp.StatusCode() != http.StatusOK {
		return "", errors.Errorf("vault login failed with status %d: %s", resp.StatusCode(), strings.Join(result.Errors, "; "))
	}
	if result.Auth == nil || result.Auth.ClientToken == "" {
		return "", errors.New("vault login returned no client token")
	}
	return result.Auth.ClientToken, nil
}

// Secrets returns every string value stored at the configured KV path.
func (vc *Client) Secrets(ctx context.Context) (map[string]string, error) {
	var result kvResponse
	resp, err := vc.http.R().
		SetContext(ctx).
		SetHeader("X-Vault-Token", vc.token).
		SetResult(&result).
		SetError(&result).
		Get("/v1/" + vc.kvSecretPath)
	if err != nil {
		return nil, errors.Wrap(err, "vault kv get")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Errorf("vault kv get failed with status %d: %s", resp.StatusCode(), strings.Join(result.Errors, "; "))
	}
	if result.Data == nil || result.Data.Data == nil {
		return nil, errors.New("vault kv response has no data")
	}

	out := make(map[string]string, len(result.Data.Data))
	for k, v := range result.Data.Data {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("secret value for key '%s' is not a string", k)
		}
		out[k] = s
	}
	return out, nil
}
