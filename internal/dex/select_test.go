package dex

import (
	"math/big"
	"testing"

	apperrors "AgentTON-Chain/internal/errors"
)

const (
	tonMinter   = "EQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAM9c"
	tokenMinter = "EQTOKENMASTER"
)

func snapshotOf(pools ...Pool) *Snapshot {
	return &Snapshot{
		Pools: pools,
		Routers: []Router{
			{Address: "EQROUTER1", PTonMaster: "EQPTON1", MajorVer: 2},
		},
	}
}

func TestChoosePoolConstantProductScore(t *testing.T) {
	// offer=10 时: 池 A 产出 floor(200*10/110)=18, 池 B 产出 floor(400*10/60)=66。
	snap := snapshotOf(
		Pool{Address: "A", Token0Minter: tonMinter, Token1Minter: tokenMinter, Reserve0: "100", Reserve1: "200", RouterAddr: "EQROUTER1"},
		Pool{Address: "B", Token0Minter: tonMinter, Token1Minter: tokenMinter, Reserve0: "50", Reserve1: "400", RouterAddr: "EQROUTER1"},
	)

	sel, err := ChoosePool(snap, tonMinter, tokenMinter, big.NewInt(10))
	if err != nil {
		t.Fatalf("选池失败: %v", err)
	}
	if sel.Pool.Address != "B" {
		t.Fatalf("期望选中 B, 实际 %s", sel.Pool.Address)
	}
	if sel.Score.String() != "66" {
		t.Fatalf("分数错误: %s", sel.Score)
	}
	if sel.Router.Address != "EQROUTER1" {
		t.Fatalf("路由解析错误: %+v", sel.Router)
	}
}

func TestChoosePoolLiquidityProxyWithoutOffer(t *testing.T) {
	// 无 offer 时退化为储备乘积的整数平方根: isqrt(9*16)=12。
	snap := snapshotOf(
		Pool{Address: "A", Token0Minter: tonMinter, Token1Minter: tokenMinter, Reserve0: "9", Reserve1: "16", RouterAddr: "EQROUTER1"},
		Pool{Address: "B", Token0Minter: tonMinter, Token1Minter: tokenMinter, Reserve0: "2", Reserve1: "3", RouterAddr: "EQROUTER1"},
	)

	sel, err := ChoosePool(snap, tonMinter, tokenMinter, nil)
	if err != nil {
		t.Fatalf("选池失败: %v", err)
	}
	if sel.Pool.Address != "A" || sel.Score.String() != "12" {
		t.Fatalf("流动性分数错误: %s / %s", sel.Pool.Address, sel.Score)
	}
}

func TestChoosePoolTieKeepsFirst(t *testing.T) {
	snap := snapshotOf(
		Pool{Address: "A", Token0Minter: tonMinter, Token1Minter: tokenMinter, Reserve0: "100", Reserve1: "200", RouterAddr: "EQROUTER1"},
		Pool{Address: "B", Token0Minter: tonMinter, Token1Minter: tokenMinter, Reserve0: "100", Reserve1: "200", RouterAddr: "EQROUTER1"},
	)

	sel, err := ChoosePool(snap, tonMinter, tokenMinter, big.NewInt(10))
	if err != nil {
		t.Fatalf("选池失败: %v", err)
	}
	if sel.Pool.Address != "A" {
		t.Fatalf("平局应保留先出现的池子, 实际 %s", sel.Pool.Address)
	}
}

func TestChoosePoolSkipsDeprecatedAndEmpty(t *testing.T) {
	snap := snapshotOf(
		Pool{Address: "A", Token0Minter: tonMinter, Token1Minter: tokenMinter, Reserve0: "100", Reserve1: "200", Deprecated: true, RouterAddr: "EQROUTER1"},
		Pool{Address: "B", Token0Minter: tonMinter, Token1Minter: tokenMinter, Reserve0: "0", Reserve1: "200", RouterAddr: "EQROUTER1"},
		Pool{Address: "C", Token0Minter: tonMinter, Token1Minter: tokenMinter, Reserve0: "10", Reserve1: "20", RouterAddr: "EQROUTER1"},
	)

	sel, err := ChoosePool(snap, tonMinter, tokenMinter, big.NewInt(5))
	if err != nil {
		t.Fatalf("选池失败: %v", err)
	}
	if sel.Pool.Address != "C" {
		t.Fatalf("应跳过废弃与空池, 实际 %s", sel.Pool.Address)
	}
}

func TestChoosePoolReverseOrientation(t *testing.T) {
	snap := snapshotOf(
		Pool{Address: "A", Token0Minter: tokenMinter, Token1Minter: tonMinter, Reserve0: "400", Reserve1: "50", RouterAddr: "EQROUTER1"},
	)

	sel, err := ChoosePool(snap, tonMinter, tokenMinter, big.NewInt(10))
	if err != nil {
		t.Fatalf("选池失败: %v", err)
	}
	if sel.ReserveIn.String() != "50" || sel.ReserveOut.String() != "400" {
		t.Fatalf("方向化储备错误: in=%s out=%s", sel.ReserveIn, sel.ReserveOut)
	}
}

func TestChoosePoolMatchesPTonAlias(t *testing.T) {
	// 原生 TON 输入时，池子里用路由的 pTon 表示同一币种。
	snap := snapshotOf(
		Pool{Address: "A", Token0Minter: "EQPTON1", Token1Minter: tokenMinter, Reserve0: "100", Reserve1: "200", RouterAddr: "EQROUTER1"},
	)

	sel, err := ChoosePool(snap, tonMinter, tokenMinter, big.NewInt(10))
	if err != nil {
		t.Fatalf("选池失败: %v", err)
	}
	if sel.Pool.Address != "A" {
		t.Fatalf("pTon 别名未匹配: %+v", sel)
	}
}

func TestChoosePoolNoRoute(t *testing.T) {
	snap := snapshotOf(
		Pool{Address: "A", Token0Minter: tonMinter, Token1Minter: "EQOTHER", Reserve0: "100", Reserve1: "200", RouterAddr: "EQROUTER1"},
	)

	_, err := ChoosePool(snap, tonMinter, tokenMinter, big.NewInt(10))
	if apperrors.CodeOf(err) != apperrors.CodeRouteUnavailable {
		t.Fatalf("期望 RouteUnavailable, 实际 %v", err)
	}
}

func TestChoosePoolDiscardsZeroOutput(t *testing.T) {
	// 产出为零的池子即使是唯一候选也不可用。
	snap := snapshotOf(
		Pool{Address: "A", Token0Minter: tonMinter, Token1Minter: tokenMinter, Reserve0: "1000000", Reserve1: "1", RouterAddr: "EQROUTER1"},
	)

	_, err := ChoosePool(snap, tonMinter, tokenMinter, big.NewInt(10))
	if apperrors.CodeOf(err) != apperrors.CodeRouteUnavailable {
		t.Fatalf("期望 RouteUnavailable, 实际 %v", err)
	}
}
