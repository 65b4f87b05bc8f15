package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/iermgmt/painel/internal/credstore"
)

var errNoRefreshToken = errors.New("refresh token ausente")

type refreshResponse struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh,omitempty"`
}

// renew obtém um access token que substitui failed. Chamadas concorrentes
// com o mesmo token compartilham uma única troca; quem chega depois de a
// troca terminar encontra o token já substituído e não troca de novo.
func (c *Client) renew(ctx context.Context, failed string) (string, error) {
	// a troca não pertence a um único chamador
	flightCtx := context.WithoutCancel(ctx)

	v, err, shared := c.flight.Do(failed, func() (any, error) {
		current, ok, err := c.store.Get(flightCtx, credstore.KeyAccessToken)
		if err != nil {
			return "", fmt.Errorf("session: ler access token: %w", err)
		}
		if ok && current != "" && current != failed {
			return current, nil
		}

		refresh, ok, err := c.store.Get(flightCtx, credstore.KeyRefreshToken)
		if err != nil {
			return "", fmt.Errorf("session: ler refresh token: %w", err)
		}
		if !ok || refresh == "" {
			return "", errNoRefreshToken
		}
		return c.exchange(flightCtx, refresh)
	})
	if shared {
		c.logger.Debug().Msg("refresh: troca compartilhada")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// exchange troca o refresh token por um novo access token. Recusa explícita
// encerra a sessão; falha de transporte não toca no Store.
func (c *Client) exchange(ctx context.Context, refresh string) (string, error) {
	res, err := c.send(ctx, http.MethodPost, refreshPath, "", map[string]string{"refresh": refresh})
	if err != nil {
		c.metrics.Refresh("network")
		return "", err
	}

	var out refreshResponse
	if res.status < 300 {
		if err := json.Unmarshal(res.body, &out); err != nil {
			out = refreshResponse{}
		}
	}
	if res.status >= 300 || out.AccessToken == "" {
		c.metrics.Refresh("rejected")
		c.logger.Info().Int("status", res.status).Msg("refresh recusado, sessão encerrada")
		if err := c.store.Remove(ctx, credstore.SessionKeys...); err != nil {
			c.logger.Warn().Err(err).Msg("refresh: não foi possível limpar credenciais")
		}
		if c.expired != nil {
			c.expired()
		}
		return "", &AuthError{Kind: KindSessionExpired, Message: res.detail()}
	}

	values := map[string]string{credstore.KeyAccessToken: out.AccessToken}
	if out.RefreshToken != "" {
		values[credstore.KeyRefreshToken] = out.RefreshToken
	}
	if err := c.store.SetMany(ctx, values); err != nil {
		return "", fmt.Errorf("session: gravar access token: %w", err)
	}

	c.metrics.Refresh("success")
	return out.AccessToken, nil
}
