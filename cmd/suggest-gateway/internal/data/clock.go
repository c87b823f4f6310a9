package data

import "time"

// Clock 时间源，测试中可替换
type Clock func() time.Time
