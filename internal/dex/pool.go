package dex

import (
	"math/big"
	"strings"

	apperrors "AgentTON-Chain/internal/errors"
)

// Pool 是 DEX 上一个交易对的快照。储备量以最小单位的十进制整数表示。
type Pool struct {
	Address      string `json:"address"`
	Token0Minter string `json:"token0_address"`
	Token1Minter string `json:"token1_address"`
	Reserve0     string `json:"reserve0"`
	Reserve1     string `json:"reserve1"`
	Deprecated   bool   `json:"deprecated"`
	RouterAddr   string `json:"router_address"`
}

// Router 是 DEX 的路由合约信息。pTon 是包装原生 TON 的 Jetton。
type Router struct {
	Address    string `json:"address"`
	PTonMaster string `json:"pton_master_address"`
	MajorVer   int    `json:"major_version"`
}

// Snapshot 是一次抓取得到的完整池子与路由列表。
type Snapshot struct {
	Pools     []Pool   `json:"pool_list"`
	Routers   []Router `json:"router_list"`
	FetchedAt int64    `json:"fetched_at"`
}

// RouterFor 返回池子所属的路由信息。
func (s *Snapshot) RouterFor(pool Pool) (Router, bool) {
	for _, router := range s.Routers {
		if strings.EqualFold(router.Address, pool.RouterAddr) {
			return router, true
		}
	}
	return Router{}, false
}

// reserves 把池子两侧的储备解析为大整数。
func (p Pool) reserves() (*big.Int, *big.Int, error) {
	r0, ok := new(big.Int).SetString(strings.TrimSpace(p.Reserve0), 10)
	if !ok {
		return nil, nil, apperrors.New(apperrors.CodeValidationFailed, "池子储备不是十进制整数: "+p.Reserve0)
	}
	r1, ok := new(big.Int).SetString(strings.TrimSpace(p.Reserve1), 10)
	if !ok {
		return nil, nil, apperrors.New(apperrors.CodeValidationFailed, "池子储备不是十进制整数: "+p.Reserve1)
	}
	return r0, r1, nil
}
