package main

import "github.com/huanfeng/xapk-installer/cmd"

func main() {
	cmd.Execute()
}
