package dex

import (
	"math/big"
	"strings"

	apperrors "AgentTON-Chain/internal/errors"
)

// Selection 是选池的结果：池子、所属路由以及计算时的方向化储备。
type Selection struct {
	Pool       Pool
	Router     Router
	Score      *big.Int
	ReserveIn  *big.Int
	ReserveOut *big.Int
}

// ChoosePool 在快照里为 inMinter -> outMinter 选择最优池子。
//
// 过滤规则：跳过已废弃的池子、配对不匹配的池子以及任一侧储备为零的
// 池子。配对匹配时两个方向都接受，方向决定哪侧是输入储备。
//
// 打分规则：offer 为正时按恒定乘积公式估算无手续费产出
// floor(reserveOut*offer/(reserveIn+offer))，产出为零的池子被丢弃；
// offer 缺失或为零时退化为流动性代理分数，即两侧储备乘积的整数平方根。
// 只有严格更高的分数才会替换当前最优，平局保留先出现的池子。
func ChoosePool(snap *Snapshot, inMinter, outMinter string, offer *big.Int) (*Selection, error) {
	if snap == nil || len(snap.Pools) == 0 {
		return nil, apperrors.New(apperrors.CodeRouteUnavailable, "池子快照为空")
	}

	inSet := tonAliases(snap, inMinter)
	var best *Selection

	for _, pool := range snap.Pools {
		if pool.Deprecated {
			continue
		}

		var reserveIn, reserveOut *big.Int
		r0, r1, err := pool.reserves()
		if err != nil {
			continue
		}

		switch {
		case inSet[normalize(pool.Token0Minter)] && matches(pool.Token1Minter, outMinter):
			reserveIn, reserveOut = r0, r1
		case inSet[normalize(pool.Token1Minter)] && matches(pool.Token0Minter, outMinter):
			reserveIn, reserveOut = r1, r0
		default:
			continue
		}

		if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
			continue
		}

		score := scorePool(reserveIn, reserveOut, offer)
		if score == nil {
			continue
		}
		if best == nil || score.Cmp(best.Score) > 0 {
			router, _ := snap.RouterFor(pool)
			best = &Selection{
				Pool:       pool,
				Router:     router,
				Score:      score,
				ReserveIn:  reserveIn,
				ReserveOut: reserveOut,
			}
		}
	}

	if best == nil {
		return nil, apperrors.New(apperrors.CodeRouteUnavailable,
			"没有可用的兑换路径: "+inMinter+" -> "+outMinter)
	}
	return best, nil
}

// scorePool 计算单个池子的分数，不可用时返回 nil。
func scorePool(reserveIn, reserveOut, offer *big.Int) *big.Int {
	if offer != nil && offer.Sign() > 0 {
		out := cpOutNoFee(reserveIn, reserveOut, offer)
		if out.Sign() == 0 {
			return nil
		}
		return out
	}
	return new(big.Int).Sqrt(new(big.Int).Mul(reserveIn, reserveOut))
}

// cpOutNoFee 按恒定乘积公式计算无手续费的产出，向下取整。
func cpOutNoFee(reserveIn, reserveOut, amountIn *big.Int) *big.Int {
	numerator := new(big.Int).Mul(reserveOut, amountIn)
	denominator := new(big.Int).Add(reserveIn, amountIn)
	return numerator.Div(numerator, denominator)
}

// tonAliases 返回输入币种的可接受地址集合。输入是原生 TON 时，
// 各路由的 pTon 包装币也视为同一币种。
func tonAliases(snap *Snapshot, inMinter string) map[string]bool {
	set := map[string]bool{normalize(inMinter): true}
	if !matches(inMinter, tonPseudoMinter) {
		return set
	}
	for _, router := range snap.Routers {
		if router.PTonMaster != "" {
			set[normalize(router.PTonMaster)] = true
		}
	}
	return set
}

// tonPseudoMinter 在池子数据中代表原生 TON。
const tonPseudoMinter = "EQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAM9c"

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func matches(a, b string) bool {
	return normalize(a) == normalize(b)
}
