package zfile_test

import (
	"fmt"
	"log"

	"github.com/absfs/zfile"
)

func Example_basic() {
	// Write a gzip-compressed file at level 6.
	f, err := zfile.Open("/tmp/zfile-example.gz", "w6")
	if err != nil {
		log.Fatal(err)
	}

	if err := f.Puts("Hello, compressed world!\n"); err != nil {
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}

	// Reading back needs no hint; the handle detects the gzip header
	// and decompresses transparently.
	f, err = zfile.Open("/tmp/zfile-example.gz", "r")
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	line, err := f.Gets(make([]byte, 128))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("compressed: %v\n", f.IsCompressed())
	fmt.Println(line)
	// Output:
	// compressed: true
	// Hello, compressed world!
}

func Example_config() {
	// Write and read back a configuration file.
	f, err := zfile.Open("/tmp/zfile-example.conf", "w")
	if err != nil {
		log.Fatal(err)
	}
	f.PutConf("LogLevel", "debug")
	f.PutConf("DocumentRoot", "/var/www")
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}

	f, err = zfile.Open("/tmp/zfile-example.conf", "r")
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	buf := make([]byte, 1024)
	linenum := 0
	for {
		directive, value, err := f.GetConf(buf, &linenum)
		if err != nil {
			break
		}
		fmt.Printf("%d: %s = %s\n", linenum, directive, value)
	}
	// Output:
	// 1: LogLevel = debug
	// 2: DocumentRoot = /var/www
}
