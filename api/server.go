// 对外HTTP与websocket接口
// 量测推送走POST批量接口或websocket长连接，
// 执行命令通过websocket实时推送给外部硬件驱动，
// 车道与路口快照提供只读查询
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/output"
)

// log api模块的日志记录器
var log = logrus.WithField("module", "api")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 引擎部署在内网，感知与驱动模块跨源接入
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server 引擎的对外服务
type Server struct {
	ctx        entity.ITaskContext
	dispatcher *output.Dispatcher
	httpServer *http.Server
}

// NewServer 创建对外服务
// 参数：ctx-任务上下文，dispatcher-执行命令分发器，listen-监听地址
func NewServer(ctx entity.ITaskContext, dispatcher *output.Dispatcher, listen string) *Server {
	s := &Server{ctx: ctx, dispatcher: dispatcher}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/measurements", s.postMeasurements)
	mux.HandleFunc("GET /api/v1/lanes", s.getLanes)
	mux.HandleFunc("GET /api/v1/junctions", s.getJunctions)
	mux.HandleFunc("GET /api/v1/junctions/{id}", s.getJunction)
	mux.HandleFunc("GET /api/v1/commands", s.getCommands)
	mux.HandleFunc("GET /ws/measurements", s.wsMeasurements)
	mux.HandleFunc("GET /ws/actuation", s.wsActuation)
	mux.HandleFunc("GET /healthz", s.healthz)
	s.httpServer = &http.Server{Addr: listen, Handler: mux}
	return s
}

// Handler 返回完整路由，供内嵌部署与测试使用
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve 启动监听并阻塞服务
func (s *Server) Serve() error {
	log.Infof("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close 关闭对外服务
func (s *Server) Close() error {
	return s.httpServer.Close()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// ingestReject 批量接收时被拒绝的量测及原因
type ingestReject struct {
	LaneID int32  `json:"lane_id"`
	Error  string `json:"error"`
}

// postMeasurements 批量接收量测
// 说明：逐条校验，坏数据只拒绝该条并在应答中说明原因，不影响其余
func (s *Server) postMeasurements(w http.ResponseWriter, r *http.Request) {
	var batch []entity.Measurement
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode measurements: %w", err))
		return
	}
	accepted := 0
	rejected := make([]ingestReject, 0)
	for _, m := range batch {
		if err := s.ctx.LaneManager().Ingest(m); err != nil {
			rejected = append(rejected, ingestReject{LaneID: m.LaneID, Error: err.Error()})
		} else {
			accepted++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"rejected": rejected,
	})
}

// getLanes 查询车道快照，支持?ids=1,2,3过滤，缺省返回全部
func (s *Server) getLanes(w http.ResponseWriter, r *http.Request) {
	var ids []int32
	if raw := r.URL.Query().Get("ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("bad lane id %q", part))
				return
			}
			ids = append(ids, int32(id))
		}
	}
	snapshots, failed := s.ctx.LaneManager().Snapshots(ids)
	writeJSON(w, http.StatusOK, map[string]any{
		"lanes":  snapshots,
		"failed": failed,
	})
}

// getJunctions 查询全部路口的相位快照
func (s *Server) getJunctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctx.JunctionManager().Snapshots())
}

// getJunction 查询单个路口的相位快照
func (s *Server) getJunction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad junction id %q", r.PathValue("id")))
		return
	}
	junction, err := s.ctx.JunctionManager().GetOrError(int32(id))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, junction.Snapshot())
}

// getCommands 查询每个路口最近一次下发的执行命令
func (s *Server) getCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.LastAll())
}

// wsMeasurements 量测推送长连接
// 说明：感知模块持续推送量测，单条错误回写告警帧但不断开
func (s *Server) wsMeasurements(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("upgrade measurement stream: %v", err)
		return
	}
	defer conn.Close()
	log.Infof("measurement stream connected from %s", r.RemoteAddr)
	for {
		var m entity.Measurement
		if err := conn.ReadJSON(&m); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("measurement stream closed: %v", err)
			}
			return
		}
		if err := s.ctx.LaneManager().Ingest(m); err != nil {
			if werr := conn.WriteJSON(ingestReject{LaneID: m.LaneID, Error: err.Error()}); werr != nil {
				return
			}
		}
	}
}

// wsActuation 执行命令推送长连接
// 说明：订阅分发器并逐条推送，写失败即断开，由驱动侧重连
func (s *Server) wsActuation(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("upgrade actuation stream: %v", err)
		return
	}
	defer conn.Close()
	commands, cancel := s.dispatcher.Subscribe()
	defer cancel()
	log.Infof("actuation stream connected from %s", r.RemoteAddr)
	for cmd := range commands {
		if err := conn.WriteJSON(cmd); err != nil {
			log.Warnf("actuation stream closed: %v", err)
			return
		}
	}
}

// healthz 存活检查，附带当前引擎时间与路口数
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	snapshots := s.ctx.JunctionManager().Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"time":      s.ctx.Clock().Now(),
		"junctions": len(snapshots),
		"degraded": len(lo.Filter(snapshots, func(p entity.PhaseSnapshot, _ int) bool {
			return p.FixedTime
		})),
	})
}
