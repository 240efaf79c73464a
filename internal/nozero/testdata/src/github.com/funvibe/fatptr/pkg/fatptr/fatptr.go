package fatptr

type NoZero struct{}
