/*
 * @module service/anomaly/forest
 * @description 孤立森林：固定种子子采样建树，按路径长度计算异常分数与判定阈值
 * @architecture 分层架构 - 业务计算层
 * @documentReference DESIGN.md
 * @stateFlow 标准化矩阵 -> 子采样建树 -> 样本分数 -> 污染率分位数作为 offset
 * @rules decision = -score - offset，小于 0 判为异常；相同数据与种子得到相同模型
 * @dependencies math, math/rand, clientrisk-service/service/utils
 * @refs detector.go
 */

package anomaly

import (
	"clientrisk-service/service/utils"
	"math"
	"math/rand"
	"sort"
)

const eulerConstant = 0.5772156649

// ForestConfig 孤立森林参数
type ForestConfig struct {
	NumTrees      int
	SamplingSize  int
	Contamination float64
	RandomSeed    int64
}

// DefaultForestConfig 默认参数：100 棵树、每棵最多 256 个样本、预期异常比例 5%
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NumTrees:      100,
		SamplingSize:  256,
		Contamination: 0.05,
		RandomSeed:    42,
	}
}

// isolationForest 训练完成后只读，可被并发查询
type isolationForest struct {
	trees         []*iTreeNode
	avgPathLength float64
	// offset 使训练集中 contamination 比例的样本 decision < 0
	offset float64
}

type iTreeNode struct {
	splitFeature  int
	splitValue    float64
	left          *iTreeNode
	right         *iTreeNode
	isExternal    bool
	pathLengthAdj float64
}

type forestBuilder struct {
	maxDepth int
	rng      *rand.Rand
}

func fitForest(data [][]float64, cfg ForestConfig) *isolationForest {
	n := len(data)
	sampleSize := cfg.SamplingSize
	if sampleSize <= 0 || sampleSize > n {
		sampleSize = n
	}

	b := &forestBuilder{
		maxDepth: int(math.Ceil(math.Log2(math.Max(float64(sampleSize), 2)))),
		rng:      rand.New(rand.NewSource(cfg.RandomSeed)),
	}

	f := &isolationForest{
		trees:         make([]*iTreeNode, 0, cfg.NumTrees),
		avgPathLength: averagePathLength(float64(sampleSize)),
	}
	if f.avgPathLength <= 0 {
		f.avgPathLength = 1
	}

	for i := 0; i < cfg.NumTrees; i++ {
		indices := b.sampleIndices(n, sampleSize)
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}
		f.trees = append(f.trees, b.buildTree(sample, 0))
	}

	scores := make([]float64, n)
	for i, point := range data {
		scores[i] = f.scoreSamples(point)
	}
	sort.Float64s(scores)
	f.offset = utils.Quantile(scores, cfg.Contamination)

	return f
}

func (b *forestBuilder) sampleIndices(n, sampleSize int) []int {
	indices := make([]int, n)
	for i := 0; i < n; i++ {
		indices[i] = i
	}

	b.rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	return indices[:sampleSize]
}

func (b *forestBuilder) buildTree(data [][]float64, depth int) *iTreeNode {
	if len(data) <= 1 || depth >= b.maxDepth {
		return leaf(len(data))
	}

	// 只在非常量特征上切分，全部为常量时成为叶子
	numFeatures := len(data[0])
	mins := make([]float64, numFeatures)
	maxs := make([]float64, numFeatures)
	copy(mins, data[0])
	copy(maxs, data[0])
	for _, d := range data[1:] {
		for j, v := range d {
			if v < mins[j] {
				mins[j] = v
			}
			if v > maxs[j] {
				maxs[j] = v
			}
		}
	}

	candidates := make([]int, 0, numFeatures)
	for j := 0; j < numFeatures; j++ {
		if maxs[j] > mins[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return leaf(len(data))
	}

	splitFeature := candidates[b.rng.Intn(len(candidates))]
	minVal, maxVal := mins[splitFeature], maxs[splitFeature]
	splitValue := minVal + b.rng.Float64()*(maxVal-minVal)

	var leftData, rightData [][]float64
	for _, d := range data {
		if d[splitFeature] < splitValue {
			leftData = append(leftData, d)
		} else {
			rightData = append(rightData, d)
		}
	}

	return &iTreeNode{
		splitFeature: splitFeature,
		splitValue:   splitValue,
		left:         b.buildTree(leftData, depth+1),
		right:        b.buildTree(rightData, depth+1),
	}
}

func leaf(size int) *iTreeNode {
	return &iTreeNode{
		isExternal:    true,
		pathLengthAdj: averagePathLength(float64(size)),
	}
}

func pathLength(point []float64, node *iTreeNode, depth int) float64 {
	for !node.isExternal {
		if point[node.splitFeature] < node.splitValue {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return float64(depth) + node.pathLengthAdj
}

// scoreSamples 取负的异常分数 -2^(-E[h(x)]/c(ψ))，越低越异常
func (f *isolationForest) scoreSamples(point []float64) float64 {
	var total float64
	for _, tree := range f.trees {
		total += pathLength(point, tree, 0)
	}
	avgPath := total / float64(len(f.trees))
	return -math.Pow(2, -avgPath/f.avgPathLength)
}

// decision 决策值，小于 0 判定为异常
func (f *isolationForest) decision(point []float64) float64 {
	return f.scoreSamples(point) - f.offset
}

func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	return 2*(math.Log(n-1)+eulerConstant) - 2*(n-1)/n
}
