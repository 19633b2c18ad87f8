package milvus

var FilterExpr = filterExpr
