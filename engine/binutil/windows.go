// +build windows

package binutil

import "github.com/openmana/accountserver/engine/omlog"

type nopRelease int

func (_ nopRelease) Release() {

}

func Daemonize() nopRelease {
	// Windows can not daemonize
	omlog.Warnf("can not run in daemon mode in windows, -d ignored")
	return nopRelease(0)
}
